package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"Taskly/internal/cli/syncer"
)

var _ syncer.Remote = (*Client)(nil)

// FetchRecords возвращает все записи авторизованного пользователя (новые первыми).
// Пользователь определяется сервером по cookie; userID нужен только для логов.
func (c *Client) FetchRecords(ctx context.Context, userID string) ([]json.RawMessage, error) {
	resp, body, err := c.GetJSON(ctx, "/api/records")
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return nil, nil
	default:
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("decode records of %s: %w", userID, err)
	}
	return raws, nil
}

// UpsertRecord отправляет запись. 409 превращается в *syncer.ConflictError с серверной копией,
// 400/422 — в syncer.ErrRejected.
func (c *Client) UpsertRecord(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/records", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return body, nil
	case http.StatusConflict:
		var head struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(body, &head)
		return nil, &syncer.ConflictError{RecordID: head.ID, Remote: json.RawMessage(body)}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: %s", syncer.ErrRejected, body)
	default:
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
}

// DeleteRecord удаляет запись на сервере. 404 — syncer.ErrRemoteNotFound.
func (c *Client) DeleteRecord(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/records/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	resp, body, err := c.do(req)
	if err != nil {
		return err
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return syncer.ErrRemoteNotFound
	default:
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
}
