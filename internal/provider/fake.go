package provider

import "context"

// FakeProvider is a test double that returns canned output and counts
// how many completions were requested.
type FakeProvider struct {
	ResponseText string
	Err          error
	PingErr      error

	Calls      int
	LastSystem string
	LastPrompt string
}

func NewFake(response string) *FakeProvider {
	return &FakeProvider{ResponseText: response}
}

func (f *FakeProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.Calls++
	f.LastSystem = systemPrompt
	f.LastPrompt = userPrompt
	if f.Err != nil {
		return "", f.Err
	}
	return f.ResponseText, nil
}

func (f *FakeProvider) Ping(ctx context.Context) error {
	return f.PingErr
}
