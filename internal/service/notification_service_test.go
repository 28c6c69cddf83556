package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-gate-api/internal/dto"
	"github.com/noah-isme/gema-gate-api/internal/repository"
)

func TestNotificationServicePublishStreamsToStudent(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewNotificationService(repository.NewNotificationRepository(db), newTestHub(), newTestValidator(), zerolog.Nop())
	ctx := context.Background()

	stream, cleanup := svc.Subscribe("s1")
	defer cleanup()
	other, cleanupOther := svc.Subscribe("s2")
	defer cleanupOther()

	published, err := svc.Publish(ctx, dto.NotificationCreateRequest{StudentID: "s1", Title: "Saída Confirmada", Message: "<script>x</script>Liberado"})
	require.NoError(t, err)
	require.Equal(t, "Liberado", published.Message)

	select {
	case received := <-stream:
		require.Equal(t, published.ID, received.ID)
		require.Equal(t, "Saída Confirmada", received.Title)
	case <-time.After(2 * time.Second):
		t.Fatal("expected notification on stream")
	}

	select {
	case <-other:
		t.Fatal("other students must not receive the notification")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNotificationServiceMarkRead(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewNotificationService(repository.NewNotificationRepository(db), newTestHub(), newTestValidator(), zerolog.Nop())
	ctx := context.Background()

	published, err := svc.Publish(ctx, dto.NotificationCreateRequest{StudentID: "s1", Title: "Aviso", Message: "Olá"})
	require.NoError(t, err)

	_, err = svc.MarkRead(ctx, published.ID, "s2")
	require.ErrorIs(t, err, ErrNotificationNotFound)

	updated, err := svc.MarkRead(ctx, published.ID, "s1")
	require.NoError(t, err)
	require.True(t, updated.Read)

	list, err := svc.List(ctx, "s1", 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.True(t, list[0].Read)

	_, err = svc.Publish(ctx, dto.NotificationCreateRequest{StudentID: "s1", Title: "Aviso", Message: "<b></b>"})
	require.ErrorIs(t, err, ErrInvalidInput)
}
