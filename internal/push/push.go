// Package push delivers notifications to registered devices.
package push

import (
	"context"

	"firebase.google.com/go/v4/messaging"
)

// Message is the device-facing rendering of a notification.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// Result summarizes one delivery across a user's devices. Unregistered lists
// tokens the provider reported as dead; callers should forget them.
type Result struct {
	Success      int
	Failure      int
	Unregistered []string
}

type Sender interface {
	Send(ctx context.Context, tokens []string, msg Message) (Result, error)
}

// FCM accepts at most 500 tokens per multicast.
const maxTokensPerBatch = 500

type multicastClient interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMSender sends through Firebase Cloud Messaging.
type FCMSender struct {
	client         multicastClient
	isUnregistered func(error) bool
}

func NewFCMSender(client *messaging.Client) *FCMSender {
	return &FCMSender{client: client, isUnregistered: messaging.IsUnregistered}
}

func (s *FCMSender) Send(ctx context.Context, tokens []string, msg Message) (Result, error) {
	var res Result
	for start := 0; start < len(tokens); start += maxTokensPerBatch {
		end := min(start+maxTokensPerBatch, len(tokens))
		batch := tokens[start:end]

		resp, err := s.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens: batch,
			Notification: &messaging.Notification{
				Title: msg.Title,
				Body:  msg.Body,
			},
			Data: msg.Data,
		})
		if err != nil {
			return res, err
		}

		res.Success += resp.SuccessCount
		res.Failure += resp.FailureCount
		for i, r := range resp.Responses {
			if r.Success || i >= len(batch) {
				continue
			}
			if s.isUnregistered(r.Error) {
				res.Unregistered = append(res.Unregistered, batch[i])
			}
		}
	}
	return res, nil
}

// Nop drops every message.
type Nop struct{}

func (Nop) Send(context.Context, []string, Message) (Result, error) {
	return Result{}, nil
}
