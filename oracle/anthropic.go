package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// MessagesClient captures the subset of the Anthropic SDK used here. It is
// satisfied by *sdk.MessageService so tests can pass a stub instead.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicOracle implements Oracle on top of the Claude Messages API.
type AnthropicOracle struct {
	msg   MessagesClient
	model string
}

const oracleMaxTokens = 1024

// NewAnthropic builds an oracle from an existing messages client.
func NewAnthropic(msg MessagesClient, model string) (*AnthropicOracle, error) {
	if msg == nil {
		return nil, errors.New("messages client is required")
	}
	if model == "" {
		return nil, errors.New("model identifier is required")
	}
	return &AnthropicOracle{msg: msg, model: model}, nil
}

// NewAnthropicFromAPIKey constructs an oracle using the default Anthropic
// HTTP client.
func NewAnthropicFromAPIKey(apiKey, model string) (*AnthropicOracle, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return NewAnthropic(&ac.Messages, model)
}

// InitialPair picks two famous but distinct actors to race between.
func (o *AnthropicOracle) InitialPair(ctx context.Context) (Node, Node, error) {
	const prompt = `Generate two famous but distinct actors for a "Six Degrees of Separation" style game.
Return their names in a JSON object. Example: {"start_actor_name": "Tom Hanks", "target_actor_name": "Zendaya"}`

	var out struct {
		Start  string `json:"start_actor_name"`
		Target string `json:"target_actor_name"`
	}
	if err := o.completeJSON(ctx, prompt, &out); err != nil {
		return Node{}, Node{}, fmt.Errorf("initial pair: %w", err)
	}
	if out.Start == "" || out.Target == "" || out.Start == out.Target {
		return Node{}, Node{}, fmt.Errorf("initial pair: unusable response %q/%q", out.Start, out.Target)
	}

	start := Node{ID: NodeID("actor", out.Start), Kind: "actor", Name: out.Start}
	target := Node{ID: NodeID("actor", out.Target), Kind: "actor", Name: out.Target}
	return start, target, nil
}

// NextChoices returns up to eight candidates adjacent to the given node:
// movies for an actor, actors for a movie.
func (o *AnthropicOracle) NextChoices(ctx context.Context, from Node) ([]Node, error) {
	var prompt, kind string
	switch from.Kind {
	case "actor":
		kind = "movie"
		prompt = fmt.Sprintf(`List up to 8 well-known movies featuring the actor %q.
Return a JSON object. Example: {"names": ["Forrest Gump", "Cast Away"]}`, from.Name)
	case "movie":
		kind = "actor"
		prompt = fmt.Sprintf(`List up to 8 well-known actors who appeared in the movie %q.
Return a JSON object. Example: {"names": ["Tom Hanks", "Robin Wright"]}`, from.Name)
	default:
		return nil, fmt.Errorf("next choices: unknown node kind %q", from.Kind)
	}

	var out struct {
		Names []string `json:"names"`
	}
	if err := o.completeJSON(ctx, prompt, &out); err != nil {
		return nil, fmt.Errorf("next choices: %w", err)
	}

	choices := make([]Node, 0, len(out.Names))
	for _, name := range out.Names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		choices = append(choices, Node{ID: NodeID(kind, name), Kind: kind, Name: name})
	}
	if len(choices) == 0 {
		return nil, fmt.Errorf("next choices: empty response for %q", from.Name)
	}
	return choices, nil
}

// ShortestPath returns a short alternating actor/movie chain connecting the
// two actors, used for the loss recap.
func (o *AnthropicOracle) ShortestPath(ctx context.Context, start, target Node) ([]Node, error) {
	prompt := fmt.Sprintf(`Find the shortest chain connecting the actor %q to the actor %q,
alternating between actors and the movies they appeared in together.
Return a JSON object listing every step in order, starting with %q and ending with %q.
Example: {"path": [{"kind": "actor", "name": "Tom Hanks"}, {"kind": "movie", "name": "The Polar Express"}, {"kind": "actor", "name": "Tom Hanks"}]}`,
		start.Name, target.Name, start.Name, target.Name)

	var out struct {
		Path []struct {
			Kind string `json:"kind"`
			Name string `json:"name"`
		} `json:"path"`
	}
	if err := o.completeJSON(ctx, prompt, &out); err != nil {
		return nil, fmt.Errorf("shortest path: %w", err)
	}
	if len(out.Path) < 2 {
		return nil, fmt.Errorf("shortest path: unusable response of %d steps", len(out.Path))
	}

	path := make([]Node, 0, len(out.Path))
	for _, step := range out.Path {
		if step.Kind != "actor" && step.Kind != "movie" {
			return nil, fmt.Errorf("shortest path: unknown step kind %q", step.Kind)
		}
		path = append(path, Node{ID: NodeID(step.Kind, step.Name), Kind: step.Kind, Name: step.Name})
	}
	return path, nil
}

// completeJSON issues a single-turn request and unmarshals the first text
// block into out. Models occasionally fence their JSON despite instructions,
// so fences are stripped before decoding.
func (o *AnthropicOracle) completeJSON(ctx context.Context, prompt string, out any) error {
	resp, err := o.msg.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(o.model),
		MaxTokens: oracleMaxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return err
	}
	if resp == nil {
		return errors.New("response message is nil")
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != "" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return errors.New("response contains no text block")
	}

	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var _ Oracle = (*AnthropicOracle)(nil)
