package server

import (
	"net/http"
	"testing"

	"newsdesk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetNotificationsScopedToRecipient(t *testing.T) {
	_, app, db := setupTestServer(t)
	alice := seedUser(t, db, "alice", false)
	bob := seedUser(t, db, "bob", false)

	require.NoError(t, db.Create(&models.Notification{
		UserID: alice.ID, Type: "comment_approved", Title: "t", Message: "m",
	}).Error)
	require.NoError(t, db.Create(&models.Notification{
		UserID: bob.ID, Type: "comment_rejected", Title: "t", Message: "m",
	}).Error)

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/api/notifications/", nil, alice.ID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.EqualValues(t, 1, body["total"])
}

func TestGetNotificationsUnreadFilter(t *testing.T) {
	_, app, db := setupTestServer(t)
	alice := seedUser(t, db, "alice", false)

	require.NoError(t, db.Create(&models.Notification{
		UserID: alice.ID, Type: "comment_approved", Title: "t", Message: "m", Read: true,
	}).Error)
	require.NoError(t, db.Create(&models.Notification{
		UserID: alice.ID, Type: "comment_rejected", Title: "t", Message: "m",
	}).Error)

	resp, err := app.Test(jsonRequest(t, http.MethodGet, "/api/notifications/?unread=true", nil, alice.ID))
	require.NoError(t, err)
	body := decodeBody(t, resp)
	assert.EqualValues(t, 1, body["total"])
}

func TestMarkNotificationRead(t *testing.T) {
	_, app, db := setupTestServer(t)
	alice := seedUser(t, db, "alice", false)

	n := &models.Notification{UserID: alice.ID, Type: "comment_approved", Title: "t", Message: "m"}
	require.NoError(t, db.Create(n).Error)

	resp, err := app.Test(jsonRequest(t, http.MethodPost,
		"/api/notifications/"+uitoa(n.ID)+"/read", nil, alice.ID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var reloaded models.Notification
	require.NoError(t, db.First(&reloaded, n.ID).Error)
	assert.True(t, reloaded.Read)
	assert.NotNil(t, reloaded.ReadAt)
}

func TestMarkNotificationReadForeignRow(t *testing.T) {
	_, app, db := setupTestServer(t)
	alice := seedUser(t, db, "alice", false)
	bob := seedUser(t, db, "bob", false)

	n := &models.Notification{UserID: bob.ID, Type: "comment_approved", Title: "t", Message: "m"}
	require.NoError(t, db.Create(n).Error)

	resp, err := app.Test(jsonRequest(t, http.MethodPost,
		"/api/notifications/"+uitoa(n.ID)+"/read", nil, alice.ID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteNotification(t *testing.T) {
	_, app, db := setupTestServer(t)
	alice := seedUser(t, db, "alice", false)

	n := &models.Notification{UserID: alice.ID, Type: "comment_approved", Title: "t", Message: "m"}
	require.NoError(t, db.Create(n).Error)

	resp, err := app.Test(jsonRequest(t, http.MethodDelete,
		"/api/notifications/"+uitoa(n.ID), nil, alice.ID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Where("id = ?", n.ID).Count(&count).Error)
	assert.Zero(t, count)
}
