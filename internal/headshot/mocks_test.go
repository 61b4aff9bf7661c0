package headshot

import (
	"context"
	"errors"
)

// --- Mocks ---

type analyzeCall struct {
	Photo       Photo
	Instruction string
}

type mockAnalyzer struct {
	calls     []analyzeCall
	responses map[string]string
	failOn    map[string]error
}

func newMockAnalyzer() *mockAnalyzer {
	return &mockAnalyzer{
		responses: map[string]string{
			FaceAnalysisInstruction:     " A light-skinned, 30s, woman with short brown hair. ",
			WardrobeAnalysisInstruction: "The person is wearing a navy blazer.",
		},
		failOn: map[string]error{},
	}
}

func (m *mockAnalyzer) AnalyzeImage(ctx context.Context, photo Photo, instruction string) (string, error) {
	m.calls = append(m.calls, analyzeCall{Photo: photo, Instruction: instruction})
	if err, ok := m.failOn[instruction]; ok {
		return "", err
	}
	if desc, ok := m.responses[instruction]; ok {
		return desc, nil
	}
	return "", errors.New("unexpected instruction")
}

type mockSynthesizer struct {
	calls  []GenerationRequest
	result GenerationResult
	err    error
}

func (m *mockSynthesizer) GenerateImage(ctx context.Context, req GenerationRequest) (GenerationResult, error) {
	m.calls = append(m.calls, req)
	if m.err != nil {
		return GenerationResult{}, m.err
	}
	return m.result, nil
}
