package llm

import "os"

const (
	ollamaContainerEndpoint = "http://ollama:11434"
	ollamaLocalEndpoint     = "http://localhost:11434"
)

// ResolveOllamaEndpoint returns OLLAMA_HOST when set, the compose service
// address when running inside a container, and localhost otherwise.
func ResolveOllamaEndpoint() string {
	return resolveOllamaEndpoint(os.Getenv, fileExists)
}

func resolveOllamaEndpoint(getenv func(string) string, exists func(string) bool) string {
	if v := getenv("OLLAMA_HOST"); v != "" {
		return v
	}
	if exists("/.dockerenv") {
		return ollamaContainerEndpoint
	}
	return ollamaLocalEndpoint
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
