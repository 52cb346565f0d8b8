package nodes

import (
	"context"
	"encoding/json"
	"strings"

	"agentflow-runner/pkg/clients/llm"
	"agentflow-runner/services/graph"
)

// LLMNode calls a model with the prompt, system and image inputs.
type LLMNode struct {
	BaseFields

	Provider    string
	Model       string // empty means the provider default for the payload
	Temperature *float64
	ExpectJSON  bool

	defaults Defaults
}

func NewLLMNode(base BaseFields, n graph.Node, defaults Defaults) (*LLMNode, error) {
	provider, err := stringParam(base, n, "provider")
	if err != nil {
		return nil, err
	}
	model, err := stringParam(base, n, "model")
	if err != nil {
		return nil, err
	}
	out, err := stringParam(base, n, "out")
	if err != nil {
		return nil, err
	}

	node := &LLMNode{
		BaseFields: base,
		Provider:   defaults.ResolveProvider(provider),
		Model:      strings.TrimSpace(model),
		ExpectJSON: out == "json",
		defaults:   defaults,
	}

	if v, ok := n.Param("temperature"); ok && v != nil {
		t, ok := toNumber(v)
		if !ok {
			return nil, base.typeErrorf("parameter 'temperature' must be a number, got %s", TypeName(v))
		}
		node.Temperature = &t
	}
	return node, nil
}

// Request builds the adapter payload from the resolved inputs. Sequences
// are joined with blank lines. The image, when set, must be a base64 data URL.
func (n *LLMNode) Request(prompt, system, image any) (llm.Request, error) {
	promptText, _ := joinText(prompt, "\n\n")

	var systemText *string
	if s, ok := joinText(system, "\n\n"); ok {
		systemText = &s
	}

	var imageData *string
	if image != nil {
		s, ok := image.(string)
		if !ok || !isImageDataURL(s) {
			return llm.Request{}, n.payloadErrorf("received an unsupported image payload. Provide a base64 data URL")
		}
		imageData = &s
	}

	return llm.Request{
		Provider:    n.Provider,
		Model:       n.defaults.ResolveModel(n.Provider, n.Model, imageData != nil),
		Prompt:      promptText,
		System:      systemText,
		Image:       imageData,
		Temperature: n.Temperature,
		ExpectJSON:  n.ExpectJSON,
	}, nil
}

// Execute delegates to the llm adapter. When structured output is expected
// and the adapter replies with text, the text must parse as JSON.
func (n *LLMNode) Execute(ctx context.Context, client llm.Client, prompt, system, image any) (any, error) {
	req, err := n.Request(prompt, system, image)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, n.adapterError(errNoAdapter, "failed")
	}
	reply, err := client.Generate(ctx, req)
	if err != nil {
		return nil, n.adapterError(err, "failed")
	}
	if !n.ExpectJSON {
		return reply, nil
	}
	return n.ParseReply(reply)
}

// ParseReply decodes a textual JSON reply. Non-text replies are returned as-is.
func (n *LLMNode) ParseReply(reply any) (any, error) {
	text, ok := reply.(string)
	if !ok {
		return reply, nil
	}
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(stripCodeFence(text))), &v); err != nil {
		return nil, n.adapterError(err, "model returned invalid JSON")
	}
	return v, nil
}

func isImageDataURL(s string) bool {
	return strings.HasPrefix(s, "data:image") && strings.Contains(s, ";base64,")
}

// stripCodeFence removes a surrounding ```json fence some models add.
func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") || !strings.HasSuffix(t, "```") || len(t) < 6 {
		return s
	}
	t = strings.TrimSuffix(strings.TrimPrefix(t, "```"), "```")
	if i := strings.IndexByte(t, '\n'); i >= 0 && !strings.ContainsAny(t[:i], "{[\"") {
		t = t[i+1:]
	}
	return t
}
