package headshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"pro-headshot-ai/internal/config"
)

// TextAnalyzer produces a short text description of a photo. Implemented by
// the gemini client; stubbed in tests.
type TextAnalyzer interface {
	AnalyzeImage(ctx context.Context, photo Photo, instruction string) (string, error)
}

// ImageSynthesizer renders a new image from a prompt, a system-level
// instruction and ordered reference photos.
type ImageSynthesizer interface {
	GenerateImage(ctx context.Context, req GenerationRequest) (GenerationResult, error)
}

type GenerationRequest struct {
	Prompt            string
	SystemInstruction string
	Photos            []Photo
}

// GenerationResult carries the first image part of the model response. An
// empty Image on a nil error means the model refused to produce one.
type GenerationResult struct {
	Image Photo
	Text  string
}

var (
	ErrAnalysisFailed   = errors.New("photo analysis failed")
	ErrGenerationFailed = errors.New("headshot generation failed")
)

type Options struct {
	Analyzer          TextAnalyzer
	Synthesizer       ImageSynthesizer
	OnAnalysisFailure config.AnalysisFailurePolicy
	GenerateInterval  time.Duration
	Logger            *slog.Logger
}

// Workflow runs one generation attempt: two sequential analysis calls on
// photo slot 1, prompt composition, then a single generation call. Nothing
// is retried; every failure ends the attempt.
type Workflow struct {
	analyzer TextAnalyzer
	synth    ImageSynthesizer
	policy   config.AnalysisFailurePolicy
	limiter  *rate.Limiter
	logger   *slog.Logger
}

func New(opts Options) (*Workflow, error) {
	if opts.Analyzer == nil {
		return nil, errors.New("analyzer is required")
	}
	if opts.Synthesizer == nil {
		return nil, errors.New("synthesizer is required")
	}

	policy := opts.OnAnalysisFailure
	if policy == "" {
		policy = config.FailureAbort
	}

	var limiter *rate.Limiter
	if opts.GenerateInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.GenerateInterval), 1)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Workflow{
		analyzer: opts.Analyzer,
		synth:    opts.Synthesizer,
		policy:   policy,
		limiter:  limiter,
		logger:   logger,
	}, nil
}

// Outcome is the user-visible result of one attempt. Refused is set when the
// model answered without any image part, which callers must report
// distinctly from a hard failure.
type Outcome struct {
	Image        Photo
	Refused      bool
	FaceDesc     string
	WardrobeDesc string
}

func (w *Workflow) Run(ctx context.Context, photos [SlotCount]Photo) (Outcome, error) {
	for i, p := range photos {
		if p.Empty() {
			return Outcome{}, fmt.Errorf("slot %d: %w", i+1, ErrEmptyPhoto)
		}
	}

	// Both descriptions come from photo slot 1; slots 2 and 3 are used only
	// as generation-time references.
	primary := photos[0]

	faceDesc, err := w.analyze(ctx, primary, FaceAnalysisInstruction, "face")
	if err != nil {
		return Outcome{}, err
	}
	w.logger.Debug("face analysis done", "len", len(faceDesc))

	wardrobeDesc, err := w.analyze(ctx, primary, WardrobeAnalysisInstruction, "wardrobe")
	if err != nil {
		return Outcome{}, err
	}
	w.logger.Debug("wardrobe analysis done", "len", len(wardrobeDesc))

	prompt := ComposePrompt(faceDesc, wardrobeDesc)

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return Outcome{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
		}
	}

	res, err := w.synth.GenerateImage(ctx, GenerationRequest{
		Prompt:            prompt,
		SystemInstruction: NegativeConstraints,
		Photos:            photos[:],
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	out := Outcome{
		FaceDesc:     faceDesc,
		WardrobeDesc: wardrobeDesc,
	}
	if res.Image.Empty() {
		w.logger.Warn("generation returned no image part")
		out.Refused = true
		return out, nil
	}

	out.Image = res.Image
	return out, nil
}

func (w *Workflow) analyze(ctx context.Context, photo Photo, instruction, kind string) (string, error) {
	desc, err := w.analyzer.AnalyzeImage(ctx, photo, instruction)
	if err != nil {
		if w.policy == config.FailureDegrade {
			w.logger.Warn("analysis failed, continuing with empty description", "kind", kind, "err", err)
			return "", nil
		}
		return "", fmt.Errorf("%w: %s analysis: %v", ErrAnalysisFailed, kind, err)
	}
	return strings.TrimSpace(desc), nil
}
