package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ScoutRadar/internal/domain"
)

type fakeMessages struct {
	calls     int
	responses []string
	errs      []error
}

func (f *fakeMessages) New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	text := ""
	if idx < len(f.responses) {
		text = f.responses[idx]
	}
	return &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{{Type: "text", Text: text}},
	}, nil
}

func testClassifier(fake *fakeMessages, maxRetries int) *Classifier {
	return &Classifier{
		messages:   fake,
		model:      "test-model",
		maxRetries: maxRetries,
		sleep:      func(time.Duration) {},
	}
}

func batch(n int) []domain.Repo {
	repos := make([]domain.Repo, n)
	for i := range repos {
		repos[i] = domain.Repo{ID: string(rune('a' + i)), FullName: "user/repo"}
	}
	return repos
}

func TestParseVerdicts(t *testing.T) {
	t.Parallel()

	verdicts := parseVerdicts("1: GOOD\n2: SKIP\nnoise line\n3) GOOD\n4. SKIP\nGOOD: 5\n")

	assert.Equal(t, map[int]bool{1: true, 2: false, 3: true, 4: false}, verdicts)
}

func TestClassifyParsesBatchVerdicts(t *testing.T) {
	t.Parallel()

	fake := &fakeMessages{responses: []string{"1: GOOD\n2: SKIP\n3: GOOD"}}
	c := testClassifier(fake, 2)

	verdicts, err := c.Classify(context.Background(), batch(3), "test source")

	require.NoError(t, err)
	assert.Equal(t, map[int]bool{1: true, 2: false, 3: true}, verdicts)
	assert.Equal(t, 1, fake.calls, "one call per batch, never per item")
}

func TestClassifyRetriesTransientFailure(t *testing.T) {
	t.Parallel()

	fake := &fakeMessages{
		errs:      []error{errors.New("timeout"), nil},
		responses: []string{"", "1: GOOD"},
	}
	c := testClassifier(fake, 2)

	verdicts, err := c.Classify(context.Background(), batch(1), "test source")

	require.NoError(t, err)
	assert.Equal(t, map[int]bool{1: true}, verdicts)
	assert.Equal(t, 2, fake.calls)
}

func TestClassifyReturnsErrorAfterExhaustedRetries(t *testing.T) {
	t.Parallel()

	boom := errors.New("service down")
	fake := &fakeMessages{errs: []error{boom, boom, boom}}
	c := testClassifier(fake, 2)

	verdicts, err := c.Classify(context.Background(), batch(2), "test source")

	assert.Error(t, err, "exhausted service failure surfaces as an error for the caller's fallback")
	assert.Nil(t, verdicts)
	assert.Equal(t, 3, fake.calls)
}

func TestClassifyUnparsableResponseIsAnError(t *testing.T) {
	t.Parallel()

	fake := &fakeMessages{responses: []string{"sorry, I cannot help with that", "also nothing"}}
	c := testClassifier(fake, 1)

	_, err := c.Classify(context.Background(), batch(1), "test source")

	assert.Error(t, err)
}

func TestClassifyEmptyBatchSkipsTheCall(t *testing.T) {
	t.Parallel()

	fake := &fakeMessages{}
	c := testClassifier(fake, 1)

	verdicts, err := c.Classify(context.Background(), nil, "test source")

	require.NoError(t, err)
	assert.Empty(t, verdicts)
	assert.Equal(t, 0, fake.calls)
}

func TestBuildPromptNumbersItems(t *testing.T) {
	t.Parallel()

	c := testClassifier(&fakeMessages{}, 0)
	prompt := c.buildPrompt([]domain.Repo{
		{FullName: "a/one", Description: "first"},
		{FullName: "b/two"},
	}, "DPI search")

	assert.Contains(t, prompt, "Source: DPI search")
	assert.Contains(t, prompt, "1. a/one — first")
	assert.Contains(t, prompt, "2. b/two — (no description)")
}
