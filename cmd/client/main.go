package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"galle/internal/service/app"
	"galle/internal/utils/log"

	"go.uber.org/zap"
)

func main() {
	serverURL := flag.String("server", "ws://localhost:8082/ws", "relay websocket endpoint")
	token := flag.String("token", os.Getenv("GALLE_TOKEN"), "authentication token")
	emisor := flag.String("user", "", "your identity")
	receptor := flag.String("to", "", "recipient identity")
	flag.Parse()

	if *token == "" || *emisor == "" || *receptor == "" {
		log.Fatal("usage: client -token <token> -user <id> -to <id> [-server ws://...]")
	}

	ctx := context.Background()

	client := app.NewApp(app.Options{
		ServerURL: *serverURL,
		Token:     *token,
		Emisor:    *emisor,
		Receptor:  *receptor,
	})

	go func() {
		done := make(chan os.Signal, 1)
		signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)
		<-done
		client.Stop()
	}()

	if err := client.Run(ctx); err != nil {
		log.Fatal("client failed", zap.Error(err))
	}
}
