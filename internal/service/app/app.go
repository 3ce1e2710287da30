// Package app is the terminal chat client for the relay: it
// authenticates, exchanges frames, and renders the conversation.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"galle/internal/model"
	"galle/internal/utils/log"

	"github.com/gdamore/tcell/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

type (
	// Options configure one client session.
	Options struct {
		ServerURL string // ws:// or wss:// endpoint
		Token     string
		Emisor    string
		Receptor  string
	}

	App struct {
		app     *tview.Application
		chatbox *tview.TextView
		input   *tview.InputField

		opts Options

		conn    *websocket.Conn
		writeMu sync.Mutex

		done chan struct{}
	}

	outboundChat struct {
		Emisor   string `json:"emisor"`
		Receptor string `json:"receptor"`
		Mensaje  string `json:"mensaje"`
		TempID   string `json:"temp_id"`
	}

	authFrame struct {
		Type   string `json:"type"`
		Token  string `json:"token"`
		Emisor string `json:"emisor"`
	}

	pingFrame struct {
		Type string `json:"type"`
	}
)

func NewApp(opts Options) *App {
	return &App{
		app:  tview.NewApplication(),
		opts: opts,
		done: make(chan struct{}),
	}
}

// Run connects, authenticates, and blocks rendering the UI.
func (c *App) Run(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.opts.ServerURL, nil)
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}
	c.conn = conn

	if err := c.writeJSON(authFrame{Type: model.TypeAuth, Token: c.opts.Token, Emisor: c.opts.Emisor}); err != nil {
		return fmt.Errorf("send auth frame: %w", err)
	}

	go c.listen()
	go c.keepAlive()
	c.renderUI()
	return nil
}

func (c *App) Stop() {
	close(c.done)
	if c.conn != nil {
		c.conn.Close()
	}
	c.app.Stop()
}

// blocking function
func (c *App) renderUI() {
	c.chatbox = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	c.chatbox.SetBorder(true).SetTitle(fmt.Sprintf(" Chat with %s ", c.opts.Receptor))

	c.input = tview.NewInputField().
		SetLabel("Message: ").
		SetFieldWidth(0)
	c.input.SetBorder(true).SetTitle(" New Message ")

	c.input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			text := c.input.GetText()
			if text == "" {
				return
			}

			go func(msg string) {
				if err := c.SendMessage(msg); err != nil {
					c.app.Suspend(func() {
						log.Error("send message failed", zap.Error(err))
					})
				}
			}(text)
		}
	})

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(c.chatbox, 0, 1, false).
		AddItem(c.input, 3, 0, true)

	if err := c.app.SetRoot(layout, true).SetFocus(c.input).Run(); err != nil {
		log.Fatal("cannot init app", zap.Error(err))
	}
}

func (c *App) listen() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Debug("websocket closed", zap.Error(err))
			c.conn.Close()
			return
		}

		var frame map[string]json.RawMessage
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Error("unmarshal frame failed", zap.Error(err))
			continue
		}

		c.render(frame)
	}
}

func (c *App) render(frame map[string]json.RawMessage) {
	frameType := rawString(frame["type"])

	var line string
	switch frameType {
	case model.TypeAuth:
		if status := rawString(frame["status"]); status != "" {
			line = fmt.Sprintf("[gray]auth: %s %s[-]", status, rawString(frame["message"]))
		} else {
			line = fmt.Sprintf("[gray]%s[-]", rawString(frame["message"]))
		}
	case model.TypePong:
		return
	case model.TypeMessageSaved:
		line = "[gray]message saved[-]"
	case model.TypeMessageError:
		line = fmt.Sprintf("[red]%s[-]", rawString(frame["error"]))
	default:
		if errText := rawString(frame["error"]); errText != "" {
			line = fmt.Sprintf("[red]%s[-]", errText)
			break
		}
		line = fmt.Sprintf("[green]%s:[-] %s", rawString(frame["emisor"]), rawString(frame["mensaje"]))
	}

	c.app.QueueUpdateDraw(func() {
		fmt.Fprintf(c.chatbox, "%s\n", line)
		c.chatbox.ScrollToEnd()
	})
}

func (c *App) SendMessage(msg string) error {
	err := c.writeJSON(outboundChat{
		Emisor:   c.opts.Emisor,
		Receptor: c.opts.Receptor,
		Mensaje:  msg,
		TempID:   uuid.NewString(),
	})
	if err != nil {
		return err
	}

	c.app.QueueUpdateDraw(func() {
		fmt.Fprintf(c.chatbox, "[yellow]You:[-] %s\n", msg)
		c.input.SetText("")
		c.chatbox.ScrollToEnd()
	})
	return nil
}

func (c *App) keepAlive() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.writeJSON(pingFrame{Type: model.TypePing}); err != nil {
				log.Debug("keepalive failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *App) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
