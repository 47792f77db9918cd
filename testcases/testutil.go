// Package testcases holds live tests against a real chat model. They are skipped unless
// RNEAGENT_RUN_LIVE_TESTS=1 and ../config.json carries an api_key.
package testcases

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/tbxark/rneagent/agent"
	"github.com/tbxark/rneagent/nlu"
	"github.com/tbxark/rneagent/reference"
	"github.com/tbxark/rneagent/retry"
)

type Config struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
}

func loadConfig(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var conf Config
	if err := sonic.Unmarshal(file, &conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

func InitChatModel(t *testing.T) *openai.ChatModel {
	t.Helper()
	if os.Getenv("RNEAGENT_RUN_LIVE_TESTS") != "1" {
		t.Skip("set RNEAGENT_RUN_LIVE_TESTS=1 to run live LLM tests")
		return nil
	}
	conf, err := loadConfig("../config.json")
	if err != nil {
		t.Skipf("failed to load config: %v", err)
		return nil
	}
	if conf.APIKey == "" {
		t.Skip("config.json api_key is empty")
		return nil
	}
	chatModel, err := openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
		APIKey:  conf.APIKey,
		Model:   conf.Model,
		BaseURL: conf.BaseURL,
	})
	if err != nil {
		t.Fatalf("failed to init chat model: %v", err)
		return nil
	}
	return chatModel
}

func NewTestInterpreter(t *testing.T) *nlu.ToolBasedInterpreter {
	t.Helper()
	chatModel := InitChatModel(t)
	interpreter, err := nlu.NewToolBasedInterpreter(chatModel, nlu.WithClock(func() time.Time {
		return time.Date(2025, 4, 5, 9, 0, 0, 0, time.UTC)
	}))
	if err != nil {
		t.Fatalf("failed to build interpreter: %v", err)
	}
	return interpreter
}

// NewTestOrchestrator runs the dialogue on the model alone, without the keyword interpreter.
func NewTestOrchestrator(t *testing.T) *agent.Orchestrator {
	t.Helper()
	interpreter := NewTestInterpreter(t)
	flow, err := agent.DefaultFlowDefinition()
	if err != nil {
		t.Fatal(err)
	}
	catalog, err := reference.DefaultCatalog()
	if err != nil {
		t.Fatal(err)
	}
	dataset, err := reference.DefaultDataset()
	if err != nil {
		t.Fatal(err)
	}
	return agent.NewRegistryOrchestrator(flow, interpreter, catalog, dataset, retry.Interactive)
}
