package providers

import (
	"time"

	"github.com/mohammad-safakhou/trender/internal/engine"
)

func testPool(keys ...string) *engine.CredentialPool {
	return engine.NewCredentialPool(keys)
}

func testHTTPClient() *engine.HTTPClient {
	return engine.NewHTTPClient(5*time.Second, 0, time.Millisecond)
}
