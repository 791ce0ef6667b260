// Package speech turns broadcast scripts into audio by running an external
// text-to-speech command.
package speech

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"

	"github.com/kliewerdaniel/News02/digest"
	"github.com/kliewerdaniel/News02/errors"
	"github.com/kliewerdaniel/News02/internal/util"
	"github.com/kliewerdaniel/News02/logger"
)

// Template placeholders, substituted per argument after splitting
const (
	PlaceholderVoice    = "{voice}"
	PlaceholderTextFile = "{text_file}"
	PlaceholderOutput   = "{output}"
)

// CommandSynthesizer runs a command template such as
// "edge-tts --voice {voice} --file {text_file} --write-media {output}"
type CommandSynthesizer struct {
	args         []string
	defaultVoice string
	logger       *zap.SugaredLogger
}

var _ digest.SpeechSynthesizer = (*CommandSynthesizer)(nil)

// NewCommandSynthesizer parses template. The template must reference
// {output}.
func NewCommandSynthesizer(template, defaultVoice string, log *zap.SugaredLogger) (*CommandSynthesizer, error) {
	if log == nil {
		log = logger.Logger
	}
	args, err := shellquote.Split(template)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid speech command %q", template)
	}
	if len(args) == 0 {
		return nil, errors.NewInvalidRequestError("speech command is empty")
	}
	if !strings.Contains(template, PlaceholderOutput) {
		return nil, errors.NewInvalidRequestError("speech command must contain %s", PlaceholderOutput)
	}
	return &CommandSynthesizer{args: args, defaultVoice: defaultVoice, logger: log.Named("speech")}, nil
}

// Synthesize writes text to a temporary file and runs the command to
// completion. An empty voice uses the default.
func (s *CommandSynthesizer) Synthesize(ctx context.Context, text, outputPath, voice string) error {
	if strings.TrimSpace(text) == "" {
		return errors.NewInvalidRequestError("no text to synthesize")
	}
	if voice == "" {
		voice = s.defaultVoice
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return errors.Wrap(err, "failed to create audio directory")
	}

	tmp, err := os.CreateTemp("", "news02-speech-*.txt")
	if err != nil {
		return errors.Wrap(err, "failed to create speech text file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write speech text file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to write speech text file")
	}

	argv := s.expand(voice, tmp.Name(), outputPath)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return errors.WithDetail(
			errors.Wrapf(err, "speech command %s failed", argv[0]),
			util.TruncateRunes(strings.TrimSpace(stderr.String()), 1000))
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return errors.Wrapf(err, "speech command produced no audio at %s", outputPath)
	}

	s.logger.Infow("Audio generated",
		logger.FieldFile, outputPath,
		logger.FieldSize, info.Size(),
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return nil
}

func (s *CommandSynthesizer) expand(voice, textFile, output string) []string {
	r := strings.NewReplacer(
		PlaceholderVoice, voice,
		PlaceholderTextFile, textFile,
		PlaceholderOutput, output,
	)
	argv := make([]string, len(s.args))
	for i, a := range s.args {
		argv[i] = r.Replace(a)
	}
	return argv
}
