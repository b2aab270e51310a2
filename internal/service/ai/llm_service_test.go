package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/compeq-chat/backend/internal/config"
	"github.com/zhouzirui/compeq-chat/backend/internal/model/persona"
)

type fakeModel struct {
	reply   string
	chunks  []string
	err     error
	seen    []*schema.Message
	options *model.Options
}

func (m *fakeModel) Generate(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.seen = input
	m.options = model.GetCommonOptions(&model.Options{}, opts...)
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *fakeModel) Stream(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.seen = input
	m.options = model.GetCommonOptions(&model.Options{}, opts...)
	if m.err != nil {
		return nil, m.err
	}
	msgs := make([]*schema.Message, 0, len(m.chunks))
	for _, c := range m.chunks {
		msgs = append(msgs, schema.AssistantMessage(c, nil))
	}
	return schema.StreamReaderFromArray(msgs), nil
}

func newTestService(t *testing.T, fake *fakeModel) *Service {
	t.Helper()
	temp := float32(0.3)
	svc, err := NewService(context.Background(), fake, Config{
		Model:       "gpt-4o",
		MaxTokens:   1500,
		Temperature: &temp,
		Window:      DefaultWindowOptions(),
	}, nil)
	require.NoError(t, err)
	return svc
}

func TestCompleteSuccess(t *testing.T) {
	fake := &fakeModel{reply: "你好"}
	svc := newTestService(t, fake)

	msgs := svc.BuildMessages(nil, "hi", nil)
	got := svc.Complete(context.Background(), msgs)

	assert.Equal(t, Completion{Text: "你好"}, got)
	require.Len(t, fake.seen, 1)
	require.NotNil(t, fake.options.MaxTokens)
	assert.Equal(t, 1500, *fake.options.MaxTokens)
	require.NotNil(t, fake.options.Model)
	assert.Equal(t, "gpt-4o", *fake.options.Model)
	require.NotNil(t, fake.options.Temperature)
	assert.InDelta(t, 0.3, *fake.options.Temperature, 1e-6)
}

func TestCompleteFailureBecomesMarkedTurn(t *testing.T) {
	svc := newTestService(t, &fakeModel{err: errors.New("quota exceeded")})

	got := svc.Complete(context.Background(), svc.BuildMessages(nil, "hi", nil))

	assert.True(t, got.Failed)
	assert.Error(t, got.Err)
	assert.Contains(t, got.Text, ErrorMarker)
	assert.Contains(t, got.Text, "quota exceeded")

	turn := got.Turn("hi")
	assert.True(t, turn.Failed)
	assert.Equal(t, "hi", turn.Question)
	assert.Equal(t, got.Text, turn.Answer)
}

func TestStreamCollectsDeltas(t *testing.T) {
	svc := newTestService(t, &fakeModel{chunks: []string{"你", "好", ""}})

	var deltas []string
	got := svc.Stream(context.Background(), svc.BuildMessages(nil, "hi", nil), func(d string) {
		deltas = append(deltas, d)
	})

	assert.False(t, got.Failed)
	assert.Equal(t, "你好", got.Text)
	assert.Equal(t, []string{"你", "好"}, deltas)
}

func TestStreamFailure(t *testing.T) {
	svc := newTestService(t, &fakeModel{err: errors.New("down")})
	got := svc.Stream(context.Background(), svc.BuildMessages(nil, "hi", nil), nil)
	assert.True(t, got.Failed)
	assert.Contains(t, got.Text, ErrorMarker)
}

func TestNewServiceRequiresModel(t *testing.T) {
	_, err := NewService(context.Background(), nil, Config{}, nil)
	assert.Error(t, err)
}

func TestConfigFrom(t *testing.T) {
	temp := 0.3
	cfg := ConfigFrom(config.AIConfig{Model: "gpt-4o", MaxTokens: 1500, Temperature: &temp}, "sys")
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, 1500, cfg.MaxTokens)
	assert.Equal(t, "sys", cfg.Window.SystemInstruction)
	assert.Equal(t, 2, cfg.Window.Lookback)
}

func TestResolveSystemPrompt(t *testing.T) {
	personas := persona.NewMemoryStore(persona.Seed())

	got, err := ResolveSystemPrompt("explicit", "compeq-assistant", personas)
	require.NoError(t, err)
	assert.Equal(t, "explicit", got)

	got, err = ResolveSystemPrompt("", "compeq-assistant", personas)
	require.NoError(t, err)
	assert.Contains(t, got, "Compeq")
	assert.Contains(t, got, "回答規則：\n- ")

	got, err = ResolveSystemPrompt("", "plain", personas)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ResolveSystemPrompt("", "missing", personas)
	assert.Error(t, err)
}
