package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/observability"
	"github.com/rhuss/chorus/pkg/storage"
)

// Send runs the query and then writes the exchange to the transcript
// store. A failed write is reported in the response's Persistence field;
// it never discards the answers.
func (e *Engine) Send(ctx context.Context, req *api.QueryRequest) (*api.QueryResponse, error) {
	resp, err := e.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	return &api.QueryResponse{
		AggregatedResponse: *resp,
		Persistence:        e.persist(ctx, req, resp),
	}, nil
}

func (e *Engine) persist(ctx context.Context, req *api.QueryRequest, resp *api.AggregatedResponse) *api.Persistence {
	if e.store == nil || !req.ShouldPersist() {
		observability.TranscriptWritesTotal.WithLabelValues(string(api.PersistSkipped)).Inc()
		return &api.Persistence{Status: api.PersistSkipped}
	}

	// The write outlives a client that disconnects after the answers are in.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.PersistTimeout)
	defer cancel()

	sessionID := req.SessionID
	if sessionID == "" {
		sess, err := e.store.CreateSession(pctx, storage.TitleFromPrompt(req.Prompt))
		if err != nil {
			return e.persistFailed(ctx, resp.RequestID, "", err)
		}
		sessionID = sess.ID
	}

	msg, err := e.store.AppendMessage(pctx, sessionID, req.Prompt, resp)
	if err != nil {
		return e.persistFailed(ctx, resp.RequestID, sessionID, err)
	}

	observability.TranscriptWritesTotal.WithLabelValues(string(api.PersistSaved)).Inc()
	return &api.Persistence{
		Status:    api.PersistSaved,
		SessionID: sessionID,
		MessageID: msg.ID,
	}
}

func (e *Engine) persistFailed(ctx context.Context, requestID, sessionID string, err error) *api.Persistence {
	slog.Warn("transcript write failed",
		"request_id", requestID,
		"session_id", sessionID,
		"owner", storage.GetOwner(ctx),
		"error", err,
	)
	observability.TranscriptWritesTotal.WithLabelValues(string(api.PersistFailed)).Inc()

	detail := "transcript store unavailable"
	if errors.Is(err, storage.ErrNotFound) {
		detail = "session not found"
	}
	return &api.Persistence{Status: api.PersistFailed, SessionID: sessionID, Error: detail}
}
