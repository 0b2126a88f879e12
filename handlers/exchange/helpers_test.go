package exchange

import (
	"net/http"
	"testing"

	"github.com/bytedance/sonic"
)

func decodeJSON(t *testing.T, r *http.Request, v interface{}) {
	t.Helper()
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(v); err != nil {
		t.Errorf("decode request: %v", err)
	}
}
