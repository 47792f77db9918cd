package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/rneagent/agent"
	"github.com/tbxark/rneagent/ingest"
	"github.com/tbxark/rneagent/nlu"
	"github.com/tbxark/rneagent/reference"
	"github.com/tbxark/rneagent/retry"
	"github.com/tbxark/rneagent/server"
)

func main() {
	conf := flag.String("config", "config.json", "path to config file")
	serve := flag.Bool("serve", false, "serve the HTTP API instead of the terminal chat")
	ingestOut := flag.String("ingest", "", "refresh the dataset from its sources and write it to this path")
	user := flag.String("user", "terminal", "user id of the terminal chat")
	flag.Parse()

	config, err := loadConfig(*conf)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	setupLogger(config)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *ingestOut != "":
		err = runIngest(ctx, config, *ingestOut)
	case *serve:
		err = runServer(ctx, config)
	default:
		err = runChat(ctx, config, *user)
	}
	if err != nil {
		log.Fatalf("run: %v", err)
	}
}

func setupLogger(config *Config) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(config.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if strings.EqualFold(config.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func newToolInterpreter(ctx context.Context, config *Config) (*nlu.ToolBasedInterpreter, error) {
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  config.APIKey,
		Model:   config.Model,
		BaseURL: config.BaseURL,
	})
	if err != nil {
		return nil, err
	}
	var opts []nlu.ToolOption
	if config.PromptsPath != "" {
		prompts, err := nlu.LoadPrompts(config.PromptsPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, nlu.WithTaskPrompts(prompts))
	}
	return nlu.NewToolBasedInterpreter(cm, opts...)
}

func loadDataset(config *Config) (*reference.Dataset, error) {
	if config.DatasetPath == "" {
		return reference.DefaultDataset()
	}
	return reference.LoadDataset(config.DatasetPath)
}

func newOrchestrator(ctx context.Context, config *Config) (*agent.Orchestrator, error) {
	flow, err := agent.DefaultFlowDefinition()
	if config.FlowPath != "" {
		flow, err = agent.LoadFlowDefinition(config.FlowPath)
	}
	if err != nil {
		return nil, err
	}
	catalog, err := reference.DefaultCatalog()
	if config.CatalogPath != "" {
		catalog, err = reference.LoadCatalog(config.CatalogPath)
	}
	if err != nil {
		return nil, err
	}
	dataset, err := loadDataset(config)
	if err != nil {
		return nil, err
	}
	policy, err := config.Policy()
	if err != nil {
		return nil, err
	}

	var interpreter nlu.Interpreter = nlu.NewLocalInterpreter()
	if config.HasModel() {
		tool, err := newToolInterpreter(ctx, config)
		if err != nil {
			return nil, err
		}
		interpreter = nlu.NewFailbackInterpreter(nlu.NewLocalInterpreter(), tool)
	} else {
		slog.Warn("No API key configured, using the keyword interpreter only")
	}
	return agent.NewRegistryOrchestrator(flow, interpreter, catalog, dataset, policy), nil
}

func runChat(ctx context.Context, config *Config, userID string) error {
	orchestrator, err := newOrchestrator(ctx, config)
	if err != nil {
		return err
	}
	registryAgent := agent.NewAgent(
		"RegistryAssistant",
		"An agent that answers registry procedure questions through a guided conversation",
		orchestrator,
	)
	runner := adk.NewRunner(ctx, adk.RunnerConfig{
		Agent: registryAgent,
	})
	reader := bufio.NewReader(os.Stdin)
	fmt.Println("Bienvenue ! Pose ta question sur une procédure du registre (création, mise à jour) :")
	for {
		fmt.Print("Utilisateur: ")
		input, rErr := reader.ReadString('\n')
		if rErr != nil {
			fmt.Println("Fin de la saisie. Au revoir.")
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		chatCtx := agent.WithStateKey(ctx, userID)
		iter := runner.Run(chatCtx, []adk.Message{schema.UserMessage(input)})
		for {
			event, ok := iter.Next()
			if !ok {
				break
			}
			if event.Err != nil {
				return event.Err
			}
			msg, mErr := event.Output.MessageOutput.GetMessage()
			if mErr != nil {
				return mErr
			}
			fmt.Printf("\nAssistant: %v\n======\n", msg.Content)
		}
	}
}

func runServer(ctx context.Context, config *Config) error {
	orchestrator, err := newOrchestrator(ctx, config)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:         config.HTTPAddr,
		Handler:      server.NewHandler(orchestrator).Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	slog.Info("Server stopped successfully")
	return nil
}

func runIngest(ctx context.Context, config *Config, out string) error {
	if !config.HasModel() {
		return fmt.Errorf("ingestion needs an API key")
	}
	tool, err := newToolInterpreter(ctx, config)
	if err != nil {
		return err
	}
	dataset, err := loadDataset(config)
	if err != nil {
		return err
	}
	ing := ingest.NewIngester(nlu.NewGuardedExtractor(tool, retry.Batch), ingest.WithBaseDir(config.SourcesDir))
	merged, report, err := ing.Run(ctx, dataset.Entries())
	if err != nil {
		return err
	}
	if err := report.Render(os.Stdout, merged); err != nil {
		return err
	}
	return ingest.WriteFile(out, merged)
}
