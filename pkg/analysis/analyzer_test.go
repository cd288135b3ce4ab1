package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"chat-eval/pkg/dataset"
	"chat-eval/pkg/llm"
	"chat-eval/pkg/taxonomy"
)

type fakeClient struct {
	responses []string
	errs      []error
	calls     int
	lastOpts  llm.Options
}

func (f *fakeClient) Generate(ctx context.Context, opts llm.Options, prompts ...llm.Prompt) (string, error) {
	i := f.calls
	f.calls++
	f.lastOpts = opts
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return "", err
	}
	return f.responses[i], nil
}

func TestAnalyzeDialogue(t *testing.T) {
	client := &fakeClient{responses: []string{
		`<think>the agent fixed it</think>{"reasoning": "Refund issued.", "request_intent": "refund", "customer_satisfaction": "satisfied", "agent_mistakes": [], "quality_score": 1}`,
	}}
	a := New(client, taxonomy.Default(), DefaultConfig())

	res := a.AnalyzeDialogue(context.Background(), resolvedChat())
	if res.Err != nil {
		t.Fatalf("AnalyzeDialogue() error = %v", res.Err)
	}
	if !res.Parsed {
		t.Error("Parsed = false")
	}
	want := dataset.Verdict{
		RequestIntent:        taxonomy.IntentRefund,
		CustomerSatisfaction: taxonomy.Satisfied,
		AgentMistakes:        []taxonomy.Mistake{},
		QualityScore:         5,
		Reasoning:            "Refund issued.",
	}
	if diff := cmp.Diff(want, res.Verdict); diff != "" {
		t.Errorf("AnalyzeDialogue() mismatch (-want +got):\n%s", diff)
	}

	if client.lastOpts.Temperature == nil || *client.lastOpts.Temperature != 0 {
		t.Errorf("temperature = %v, want 0", client.lastOpts.Temperature)
	}
	if client.lastOpts.Seed == nil || *client.lastOpts.Seed != 42 {
		t.Errorf("seed = %v, want 42", client.lastOpts.Seed)
	}
	if client.lastOpts.JSON || client.lastOpts.Schema != nil {
		t.Error("JSON mode must be off by default")
	}
}

func TestAnalyzeDialogueCallFailure(t *testing.T) {
	client := &fakeClient{errs: []error{errors.New("connection refused")}}
	a := New(client, taxonomy.Default(), DefaultConfig())

	res := a.AnalyzeDialogue(context.Background(), resolvedChat())
	if res.Err == nil {
		t.Fatal("AnalyzeDialogue() expected error")
	}
	want := dataset.Verdict{
		RequestIntent:        taxonomy.IntentOther,
		CustomerSatisfaction: taxonomy.Unsatisfied,
		AgentMistakes:        []taxonomy.Mistake{taxonomy.MistakeNoResolution},
		QualityScore:         2,
	}
	if diff := cmp.Diff(want, res.Verdict); diff != "" {
		t.Errorf("fallback verdict mismatch (-want +got):\n%s", diff)
	}
}

func TestRun(t *testing.T) {
	ds := dataset.Dataset{
		{ID: 1, Chat: resolvedChat()},
		{ID: 2, Chat: resolvedChat()},
		{ID: 3, Chat: resolvedChat()},
	}
	client := &fakeClient{
		responses: []string{
			`{"request_intent": "payment issue", "customer_satisfaction": "satisfied", "agent_mistakes": ["rude_tone"]}`,
			"",
			"sorry, no JSON today",
		},
		errs: []error{nil, errors.New("boom"), nil},
	}
	a := New(client, taxonomy.Default(), Config{JSONMode: true, Normalizer: DefaultNormalizerOptions()})

	var seen []int
	sum, err := a.Run(context.Background(), ds, func(p Progress) {
		seen = append(seen, p.Record.ID)
		if p.Total != 3 {
			t.Errorf("Progress.Total = %d, want 3", p.Total)
		}
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if diff := cmp.Diff(Summary{Total: 3, Failed: 1, Unparsed: 1}, sum); diff != "" {
		t.Errorf("Run() summary mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, seen); diff != "" {
		t.Errorf("progress order mismatch (-want +got):\n%s", diff)
	}
	for _, r := range ds {
		if r.Analysis == nil {
			t.Fatalf("record %d has no analysis", r.ID)
		}
	}
	if got := ds[0].Analysis; got.RequestIntent != taxonomy.IntentPaymentProblems || got.QualityScore != 1 {
		t.Errorf("record 1 = %+v", got)
	}
	if !client.lastOpts.JSON || client.lastOpts.Schema == nil {
		t.Error("JSON mode was not requested")
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &fakeClient{}
	ds := dataset.Dataset{{ID: 1, Chat: resolvedChat()}}
	_, err := New(client, taxonomy.Default(), DefaultConfig()).Run(ctx, ds, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if client.calls != 0 {
		t.Errorf("client called %d times after cancellation", client.calls)
	}
}
