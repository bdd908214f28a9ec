package docs

import (
	"strings"
	"testing"
)

func TestSwaggerInfoRegistered(t *testing.T) {
	if SwaggerInfo == nil {
		t.Fatal("swagger info not initialized")
	}
	if SwaggerInfo.Title != "Kassandra API" {
		t.Fatalf("unexpected title: %s", SwaggerInfo.Title)
	}
	for _, path := range []string{"/api/pipeline/run", "/api/predictions", "/api/models", "/health"} {
		if !strings.Contains(SwaggerInfo.SwaggerTemplate, `"`+path+`"`) {
			t.Errorf("swagger template missing path %s", path)
		}
	}
}
