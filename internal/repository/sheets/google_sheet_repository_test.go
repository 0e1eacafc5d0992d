package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

func TestReplaceSheet(t *testing.T) {
	var (
		mu       sync.Mutex
		calls    []string
		received sheetsapi.ValueRange
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":clear"):
			calls = append(calls, "clear")
		case r.Method == http.MethodPut:
			calls = append(calls, "update")
			assert.Equal(t, "RAW", r.URL.Query().Get("valueInputOption"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	service, err := sheetsapi.NewService(context.Background(), option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	require.NoError(t, err)
	repo := &GoogleSheetRepository{service: service, spreadsheetID: "sheet-id", logger: zap.NewNop()}

	values := [][]interface{}{{"ID", "Nom"}, {1, "Kouame"}}
	require.NoError(t, repo.ReplaceSheet(context.Background(), "Ecoliers", values))

	assert.Equal(t, []string{"clear", "update"}, calls)
	require.Len(t, received.Values, 2)
	assert.Equal(t, "Kouame", received.Values[1][1])

	calls = nil
	require.NoError(t, repo.ReplaceSheet(context.Background(), "Eleves", nil))
	assert.Equal(t, []string{"clear"}, calls)

	assert.Error(t, repo.ReplaceSheet(context.Background(), "", values))
}
