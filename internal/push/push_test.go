package push

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errGone = errors.New("registration-token-not-registered")

type fakeClient struct {
	batches [][]string
	dead    map[string]bool
	err     error
}

func (f *fakeClient) SendEachForMulticast(_ context.Context, m *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, m.Tokens)
	resp := &messaging.BatchResponse{}
	for _, tok := range m.Tokens {
		if f.dead[tok] {
			resp.FailureCount++
			resp.Responses = append(resp.Responses, &messaging.SendResponse{Error: errGone})
			continue
		}
		resp.SuccessCount++
		resp.Responses = append(resp.Responses, &messaging.SendResponse{Success: true, MessageID: "m-" + tok})
	}
	return resp, nil
}

func newTestSender(c *fakeClient) *FCMSender {
	return &FCMSender{client: c, isUnregistered: func(err error) bool { return errors.Is(err, errGone) }}
}

func TestSendCollectsUnregisteredTokens(t *testing.T) {
	client := &fakeClient{dead: map[string]bool{"b": true}}
	res, err := newTestSender(client).Send(context.Background(), []string{"a", "b", "c"}, Message{Title: "t", Body: "b"})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Success)
	assert.Equal(t, 1, res.Failure)
	assert.Equal(t, []string{"b"}, res.Unregistered)
}

func TestSendSplitsLargeBatches(t *testing.T) {
	tokens := make([]string, maxTokensPerBatch+3)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("tok-%d", i)
	}
	client := &fakeClient{}
	res, err := newTestSender(client).Send(context.Background(), tokens, Message{})
	require.NoError(t, err)

	require.Len(t, client.batches, 2)
	assert.Len(t, client.batches[0], maxTokensPerBatch)
	assert.Len(t, client.batches[1], 3)
	assert.Equal(t, len(tokens), res.Success)
}

func TestSendPropagatesTransportError(t *testing.T) {
	client := &fakeClient{err: errors.New("unavailable")}
	_, err := newTestSender(client).Send(context.Background(), []string{"a"}, Message{})
	assert.Error(t, err)
}
