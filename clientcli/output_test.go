package clientcli_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lines-of-codes/litestore/clientcli"
)

func TestNewFormatter(t *testing.T) {
	t.Run("json formatter", func(t *testing.T) {
		_, ok := clientcli.NewFormatter(true, false).(*clientcli.JSONFormatter)
		assert.True(t, ok)
	})

	t.Run("human formatter quiet", func(t *testing.T) {
		hf, ok := clientcli.NewFormatter(false, true).(*clientcli.HumanFormatter)
		require.True(t, ok)
		assert.True(t, hf.Quiet)
	})
}

func TestHumanFormatter_FormatUpload(t *testing.T) {
	results := []clientcli.UploadResult{
		{LocalPath: "local.txt", RemotePath: "/remote.txt", Size: 1024, Parts: 1},
		{LocalPath: "broken.txt", Err: errors.New("permission denied")},
	}

	var buf bytes.Buffer
	require.NoError(t, (&clientcli.HumanFormatter{}).FormatUpload(&buf, results))

	output := buf.String()
	assert.Contains(t, output, "Uploaded: local.txt -> /remote.txt (1.0 KB, 1 part(s))")
	assert.Contains(t, output, "Error: broken.txt - permission denied")

	buf.Reset()
	require.NoError(t, (&clientcli.HumanFormatter{Quiet: true}).FormatUpload(&buf, results))
	assert.NotContains(t, buf.String(), "Uploaded")
	assert.Contains(t, buf.String(), "Error: broken.txt")
}

func TestHumanFormatter_FormatList(t *testing.T) {
	updated := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)

	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{}).FormatList(&buf, nil))
		assert.Equal(t, "Folder is empty\n", buf.String())
	})

	t.Run("folders and files", func(t *testing.T) {
		nodes := []clientcli.Node{
			{Filename: "photos", IsFolder: true, UpdatedAt: updated},
			{Filename: "a.txt", UpdatedAt: updated},
			{Filename: "old.txt", Trashed: true, UpdatedAt: updated},
		}

		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{}).FormatList(&buf, nodes))

		output := buf.String()
		assert.Contains(t, output, "photos/")
		assert.Contains(t, output, "old.txt (trashed)")
		assert.Contains(t, output, "2024-03-01 12:00:00")
		assert.Contains(t, output, "1 folder(s), 2 file(s)")
	})
}

func TestHumanFormatter_FormatDelete(t *testing.T) {
	results := []clientcli.DeleteResult{
		{Path: "/a.txt", Deleted: true, TaskID: 3},
		{Path: "/missing", Err: errors.New("not found")},
	}

	var buf bytes.Buffer
	require.NoError(t, (&clientcli.HumanFormatter{}).FormatDelete(&buf, results))
	assert.Contains(t, buf.String(), "Deleted: /a.txt (task 3)")
	assert.Contains(t, buf.String(), "Error: /missing - not found")
}

func TestHumanFormatter_FormatLinks(t *testing.T) {
	limit := 5
	expires := time.Date(2030, 1, 2, 3, 4, 5, 0, time.Local)
	links := []clientcli.Link{
		{ID: "0b7e1f2c-6a55-4c8e-9d3a-3f1f0f4b2a10", FileID: 4, DownloadCount: 2, DownloadLimit: &limit, ExpiresAt: &expires},
		{ID: "9f0c1a8e-1111-4c8e-9d3a-3f1f0f4b2a10", FileID: 7},
	}

	var buf bytes.Buffer
	require.NoError(t, (&clientcli.HumanFormatter{}).FormatLinks(&buf, links))

	output := buf.String()
	assert.Contains(t, output, "2/5")
	assert.Contains(t, output, "2030-01-02 03:04:05")
	assert.Contains(t, output, "never")
}

func TestHumanFormatter_FormatTask(t *testing.T) {
	task := clientcli.Task{ID: 1, Label: "delete /a", State: "failed", Error: "bucket unreachable"}

	var buf bytes.Buffer
	require.NoError(t, (&clientcli.HumanFormatter{}).FormatTask(&buf, task))
	assert.Contains(t, buf.String(), "Task 1: failed")
	assert.Contains(t, buf.String(), "bucket unreachable")
}

func TestJSONFormatter_FormatDelete(t *testing.T) {
	results := []clientcli.DeleteResult{
		{Path: "/a.txt", Deleted: true, TaskID: 0},
		{Path: "/missing", Err: errors.New("not found")},
	}

	var buf bytes.Buffer
	require.NoError(t, (&clientcli.JSONFormatter{}).FormatDelete(&buf, results))

	var out struct {
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out.Results, 2)
	assert.InDelta(t, 0, out.Results[0]["task_id"], 0, "task 0 is still reported")
	assert.Equal(t, "not found", out.Results[1]["error"])
	assert.NotContains(t, out.Results[1], "task_id")
}

func TestJSONFormatter_FormatError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&clientcli.JSONFormatter{}).FormatError(&buf, errors.New("boom")))
	assert.JSONEq(t, `{"error":"boom"}`, buf.String())
}

func TestFormatProfiles_MaskToken(t *testing.T) {
	profiles := []clientcli.Profile{
		{Name: "home", Endpoint: "http://nas:5708", Username: "alice", Token: "eyJhbGciOiJIUzI1NiJ9.payload.sig"},
		{Name: "work", Endpoint: "https://files.example.com"},
	}

	t.Run("human", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.HumanFormatter{}).FormatProfileList(&buf, profiles, "home", false))

		output := buf.String()
		assert.Contains(t, output, "* home")
		assert.Contains(t, output, "eyJh....sig")
		assert.NotContains(t, output, "payload")
		assert.Contains(t, output, "(not set)")
	})

	t.Run("json with secrets", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&clientcli.JSONFormatter{}).FormatProfileShow(&buf, profiles[0], true, true))

		var out map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
		assert.Equal(t, profiles[0].Token, out["token"])
		assert.Equal(t, true, out["default"])
	})
}
