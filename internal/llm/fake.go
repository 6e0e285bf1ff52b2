package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// FakeResponse is one scripted answer.
type FakeResponse struct {
	Raw   string
	Err   error
	Delay time.Duration
}

// FakeCall records a call received by FakeClient.
type FakeCall struct {
	Phase  string
	Prompt string
	Input  json.RawMessage
}

// FakeClient answers from per-phase scripts and falls back to deterministic
// payloads derived from the input, for offline runs and tests.
type FakeClient struct {
	mu      sync.Mutex
	scripts map[string][]FakeResponse
	calls   []FakeCall
}

func NewFakeClient() *FakeClient {
	return &FakeClient{scripts: map[string][]FakeResponse{}}
}

func (f *FakeClient) Name() string { return "fake" }
func (f *FakeClient) Close() error { return nil }

// On queues responses for phase. The last queued response repeats.
func (f *FakeClient) On(phase string, rs ...FakeResponse) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[phase] = append(f.scripts[phase], rs...)
	return f
}

// OnJSON queues a successful answer for phase.
func (f *FakeClient) OnJSON(phase string, v any) *FakeClient {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return f.On(phase, FakeResponse{Raw: string(b)})
}

// Calls returns the calls received so far, optionally limited to phases.
func (f *FakeClient) Calls(phases ...string) []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []FakeCall
	for _, c := range f.calls {
		if len(phases) == 0 || contains(phases, c.Phase) {
			out = append(out, c)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (f *FakeClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	phase := PhaseFrom(ctx)
	in, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls = append(f.calls, FakeCall{Phase: phase, Prompt: prompt, Input: in})
	var (
		r      FakeResponse
		script bool
	)
	if q := f.scripts[phase]; len(q) > 0 {
		r, script = q[0], true
		if len(q) > 1 {
			f.scripts[phase] = q[1:]
		}
	}
	f.mu.Unlock()

	if !script {
		return defaultAnswer(phase, in)
	}
	if r.Delay > 0 {
		t := time.NewTimer(r.Delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return ExtractJSON(r.Raw)
}

// defaultAnswer builds a plausible answer from the call input.
func defaultAnswer(phase string, in json.RawMessage) (json.RawMessage, error) {
	var m map[string]any
	_ = json.Unmarshal(in, &m)
	var obj any
	switch phase {
	case PhasePlanner:
		limit := intOf(m["max_files"], 10)
		var paths []string
		if list, ok := m["candidates"].([]any); ok {
			for _, c := range list {
				if cm, ok := c.(map[string]any); ok {
					if p, ok := cm["path"].(string); ok {
						paths = append(paths, p)
					}
				}
			}
		}
		if len(paths) > limit {
			paths = paths[:limit]
		}
		obj = map[string]any{"important_files": paths}
	case PhaseChunk:
		text, _ := m["text"].(string)
		if len(text) > 200 {
			text = text[:200]
		}
		obj = map[string]any{"summary": fmt.Sprintf("Part of %v: %s", m["path"], strings.TrimSpace(text))}
	case PhaseFinal:
		repo, _ := m["repository"].(string)
		techs := stringsOf(m["technologies"])
		if len(techs) > 8 {
			techs = techs[:8]
		}
		var structure []string
		if files, ok := m["files"].([]any); ok {
			for _, f := range files {
				if fm, ok := f.(map[string]any); ok {
					if p, ok := fm["path"].(string); ok {
						structure = append(structure, fmt.Sprintf("`%s` is part of the selected context.", p))
					}
				}
			}
		}
		obj = map[string]any{
			"summary":      fmt.Sprintf("%s is a software repository.", repo),
			"technologies": techs,
			"structure":    structure,
		}
	case PhaseJudge:
		obj = map[string]any{
			"overall":             1.0,
			"hallucination_flags": []string{},
			"scores":              map[string]float64{"faithful": 1, "completeness": 1, "structure": 1},
			"notes":               "offline judge",
		}
	default:
		obj = map[string]any{}
	}
	b, _ := json.Marshal(obj)
	return json.RawMessage(b), nil
}

func stringsOf(v any) []string {
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, x := range list {
		if s, ok := x.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func intOf(v any, def int) int {
	if f, ok := v.(float64); ok && f > 0 {
		return int(f)
	}
	return def
}
