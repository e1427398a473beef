// Package flags defines town-node specific runtime flags for setting
// important values such as API ports, language model endpoints, and more.
package flags

import (
	"github.com/urfave/cli/v2"
)

var (
	// HTTPHost defines the host on which the town API server listens.
	HTTPHost = &cli.StringFlag{
		Name:  "http-host",
		Usage: "Host on which the HTTP API server should listen",
		Value: "127.0.0.1",
	}
	// HTTPPort defines the port on which the town API server listens.
	HTTPPort = &cli.IntFlag{
		Name:  "http-port",
		Usage: "Port on which the HTTP API server should listen",
		Value: 3000,
	}
	// HTTPCorsDomain defines the allowed origins for the town API server.
	HTTPCorsDomain = &cli.StringFlag{
		Name: "http-corsdomain",
		Usage: "Comma separated list of domains from which to accept cross origin requests " +
			"(browser enforced)",
		Value: "http://localhost:5173,http://127.0.0.1:5173",
	}
	// MonitoringPortFlag defines the http port used to serve prometheus metrics.
	MonitoringPortFlag = &cli.IntFlag{
		Name:  "monitoring-port",
		Usage: "Port used to listening and respond metrics for prometheus",
		Value: 8080,
	}
	// LLMHostFlag overrides the OpenAI-compatible API endpoint used for agent
	// chat completions and embeddings.
	LLMHostFlag = &cli.StringFlag{
		Name: "llm-host",
		Usage: "A host address of an OpenAI-compatible API serving chat completions and embeddings. " +
			"Defaults to the OpenAI public API when unset",
	}
	// OpenAIAPIKeyFlag overrides the OPENAI_API_KEY environment variable.
	OpenAIAPIKeyFlag = &cli.StringFlag{
		Name:  "openai-api-key",
		Usage: "API key used to authenticate against the language model host. Overrides $OPENAI_API_KEY",
	}
	// ChatModelFlag overrides the model used for agent conversations and
	// decision prompts.
	ChatModelFlag = &cli.StringFlag{
		Name:  "llm-chat-model",
		Usage: "Name of the chat completion model used for agent conversations",
	}
	// EmbeddingModelFlag overrides the model used to embed memories for
	// similarity search.
	EmbeddingModelFlag = &cli.StringFlag{
		Name:  "llm-embedding-model",
		Usage: "Name of the embedding model used for agent memory retrieval",
	}
)
