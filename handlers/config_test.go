// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/fable/models"
	"github.com/danielhkuo/fable/testutil"
)

// TestConfigPartialUpdate verifies PUT only changes the fields present in
// the request body.
func TestConfigPartialUpdate(t *testing.T) {
	env := newTestEnv(t)
	handler := NewConfigHandler(env.engine, env.cfg)

	serverID := testutil.CreateTestServer(t, env.db, 830)

	w := httptest.NewRecorder()
	handler.GetConfig(w, env.serverRequest("GET", "/servers/830/config", nil, serverID))
	testutil.AssertStatus(t, w, http.StatusOK)

	var before models.ServerConfig
	testutil.AssertJSON(t, w, &before)
	if !before.QueueEnabled || before.MatureEnabled {
		t.Errorf("Unexpected defaults: %+v", before)
	}

	channel := int64(777)
	queueOff := false
	w = httptest.NewRecorder()
	handler.UpdateConfig(w, env.serverRequest("PUT", "/servers/830/config",
		models.UpdateConfigRequest{AnnouncementChannelID: &channel, QueueEnabled: &queueOff}, serverID))
	testutil.AssertStatus(t, w, http.StatusOK)

	var after models.ServerConfig
	testutil.AssertJSON(t, w, &after)
	if after.AnnouncementChannelID == nil || *after.AnnouncementChannelID != 777 {
		t.Errorf("Announcement channel not updated: %+v", after)
	}
	if after.QueueEnabled {
		t.Error("queue_enabled not updated")
	}
	// Untouched fields keep their values
	if after.PinPolls != before.PinPolls || after.MatureEnabled != before.MatureEnabled {
		t.Errorf("Partial update changed unrelated fields: %+v", after)
	}

	// Omitted fields survive a second update
	pin := true
	w = httptest.NewRecorder()
	handler.UpdateConfig(w, env.serverRequest("PUT", "/servers/830/config",
		models.UpdateConfigRequest{PinPolls: &pin}, serverID))
	testutil.AssertStatus(t, w, http.StatusOK)

	testutil.AssertJSON(t, w, &after)
	if !after.PinPolls || after.QueueEnabled || *after.AnnouncementChannelID != 777 {
		t.Errorf("Second update lost earlier values: %+v", after)
	}
}

// TestConfigUpdateRegistersServer verifies PUT works for a server the bot
// has never seen: the server row the config row references is created on
// the way.
func TestConfigUpdateRegistersServer(t *testing.T) {
	env := newTestEnv(t)
	handler := NewConfigHandler(env.engine, env.cfg)

	const serverID = 831

	mature := true
	w := httptest.NewRecorder()
	handler.UpdateConfig(w, env.serverRequest("PUT", "/servers/831/config",
		models.UpdateConfigRequest{ServerName: "Book Nook", MatureEnabled: &mature}, serverID))
	testutil.AssertStatus(t, w, http.StatusOK)

	var cfg models.ServerConfig
	testutil.AssertJSON(t, w, &cfg)
	if !cfg.MatureEnabled {
		t.Errorf("Config not saved: %+v", cfg)
	}
	if n := testutil.CountRows(t, env.db, "SELECT COUNT(*) FROM server WHERE server_id = $1 AND server_name = 'Book Nook'", serverID); n != 1 {
		t.Error("Server row was not registered")
	}
	if n := testutil.CountRows(t, env.db, "SELECT COUNT(*) FROM server_config WHERE server_id = $1", serverID); n != 1 {
		t.Error("Config row was not saved")
	}

	// A later nameless registration keeps the reported name
	queueOff := false
	w = httptest.NewRecorder()
	handler.UpdateConfig(w, env.serverRequest("PUT", "/servers/831/config",
		models.UpdateConfigRequest{QueueEnabled: &queueOff}, serverID))
	testutil.AssertStatus(t, w, http.StatusOK)
	if n := testutil.CountRows(t, env.db, "SELECT COUNT(*) FROM server WHERE server_id = $1 AND server_name = 'Book Nook'", serverID); n != 1 {
		t.Error("Nameless update overwrote the server name")
	}
}
