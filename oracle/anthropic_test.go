package oracle

import (
	"context"
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMessagesClient struct {
	lastParams sdk.MessageNewParams
	resp       *sdk.Message
	err        error
}

func (s *stubMessagesClient) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	s.lastParams = body
	return s.resp, s.err
}

func textResponse(text string) *sdk.Message {
	return &sdk.Message{
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: text},
		},
	}
}

func TestNewAnthropicRequiresClientAndModel(t *testing.T) {
	_, err := NewAnthropic(nil, "claude-sonnet-4-5")
	require.Error(t, err)

	_, err = NewAnthropic(&stubMessagesClient{}, "")
	require.Error(t, err)
}

func TestInitialPair(t *testing.T) {
	stub := &stubMessagesClient{
		resp: textResponse(`{"start_actor_name": "Tom Hanks", "target_actor_name": "Zendaya"}`),
	}
	orc, err := NewAnthropic(stub, "claude-sonnet-4-5")
	require.NoError(t, err)

	start, target, err := orc.InitialPair(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Node{ID: "actor:tom-hanks", Kind: "actor", Name: "Tom Hanks"}, start)
	assert.Equal(t, Node{ID: "actor:zendaya", Kind: "actor", Name: "Zendaya"}, target)
	assert.Equal(t, sdk.Model("claude-sonnet-4-5"), stub.lastParams.Model)
}

func TestInitialPairStripsCodeFences(t *testing.T) {
	stub := &stubMessagesClient{
		resp: textResponse("```json\n{\"start_actor_name\": \"Tom Hanks\", \"target_actor_name\": \"Zendaya\"}\n```"),
	}
	orc, err := NewAnthropic(stub, "claude-sonnet-4-5")
	require.NoError(t, err)

	start, _, err := orc.InitialPair(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Tom Hanks", start.Name)
}

func TestInitialPairRejectsIdenticalActors(t *testing.T) {
	stub := &stubMessagesClient{
		resp: textResponse(`{"start_actor_name": "Tom Hanks", "target_actor_name": "Tom Hanks"}`),
	}
	orc, err := NewAnthropic(stub, "claude-sonnet-4-5")
	require.NoError(t, err)

	_, _, err = orc.InitialPair(context.Background())
	require.Error(t, err)
}

func TestNextChoicesForActor(t *testing.T) {
	stub := &stubMessagesClient{
		resp: textResponse(`{"names": ["Forrest Gump", "Cast Away", ""]}`),
	}
	orc, err := NewAnthropic(stub, "claude-sonnet-4-5")
	require.NoError(t, err)

	choices, err := orc.NextChoices(context.Background(), Node{Kind: "actor", Name: "Tom Hanks"})
	require.NoError(t, err)
	require.Len(t, choices, 2)
	assert.Equal(t, Node{ID: "movie:forrest-gump", Kind: "movie", Name: "Forrest Gump"}, choices[0])
	assert.Equal(t, "movie:cast-away", choices[1].ID)
}

func TestNextChoicesForMovie(t *testing.T) {
	stub := &stubMessagesClient{
		resp: textResponse(`{"names": ["Tom Hanks", "Robin Wright"]}`),
	}
	orc, err := NewAnthropic(stub, "claude-sonnet-4-5")
	require.NoError(t, err)

	choices, err := orc.NextChoices(context.Background(), Node{Kind: "movie", Name: "Forrest Gump"})
	require.NoError(t, err)
	require.Len(t, choices, 2)
	assert.Equal(t, "actor", choices[0].Kind)
}

func TestNextChoicesUnknownKind(t *testing.T) {
	orc, err := NewAnthropic(&stubMessagesClient{}, "claude-sonnet-4-5")
	require.NoError(t, err)

	_, err = orc.NextChoices(context.Background(), Node{Kind: "director", Name: "Nora Ephron"})
	require.Error(t, err)
}

func TestNextChoicesPropagatesAPIError(t *testing.T) {
	stub := &stubMessagesClient{err: errors.New("rate limited")}
	orc, err := NewAnthropic(stub, "claude-sonnet-4-5")
	require.NoError(t, err)

	_, err = orc.NextChoices(context.Background(), Node{Kind: "actor", Name: "Tom Hanks"})
	require.Error(t, err)
}

func TestShortestPath(t *testing.T) {
	stub := &stubMessagesClient{
		resp: textResponse(`{"path": [
			{"kind": "actor", "name": "Tom Hanks"},
			{"kind": "movie", "name": "The Polar Express"},
			{"kind": "actor", "name": "Zendaya"}
		]}`),
	}
	orc, err := NewAnthropic(stub, "claude-sonnet-4-5")
	require.NoError(t, err)

	path, err := orc.ShortestPath(context.Background(),
		Node{Kind: "actor", Name: "Tom Hanks"},
		Node{Kind: "actor", Name: "Zendaya"})
	require.NoError(t, err)
	require.Len(t, path, 3)
	assert.Equal(t, "movie:the-polar-express", path[1].ID)
}

func TestShortestPathRejectsUnknownStepKind(t *testing.T) {
	stub := &stubMessagesClient{
		resp: textResponse(`{"path": [
			{"kind": "actor", "name": "Tom Hanks"},
			{"kind": "studio", "name": "Playtone"}
		]}`),
	}
	orc, err := NewAnthropic(stub, "claude-sonnet-4-5")
	require.NoError(t, err)

	_, err = orc.ShortestPath(context.Background(),
		Node{Kind: "actor", Name: "Tom Hanks"},
		Node{Kind: "actor", Name: "Zendaya"})
	require.Error(t, err)
}

func TestNodeID(t *testing.T) {
	assert.Equal(t, "actor:tom-hanks", NodeID("actor", "  Tom   Hanks "))
	assert.Equal(t, "movie:cast-away", NodeID("movie", "Cast Away"))
}
