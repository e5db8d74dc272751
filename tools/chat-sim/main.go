// Command chat-sim is an interactive terminal client for the booking
// assistant. Each line typed is posted to /api/v1/messages as one turn.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

type client struct {
	baseURL string
	http    *http.Client
}

func (c client) send(phone, name, text string) (string, error) {
	raw, err := json.Marshal(map[string]any{"phone": phone, "name": name, "message": text})
	if err != nil {
		return "", err
	}
	resp, err := c.http.Post(c.baseURL+"/api/v1/messages", "application/json", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out struct {
		Reply string `json:"reply"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	return out.Reply, nil
}

func (c client) reset(phone string) error {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+"/api/v1/conversations/"+phone, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func main() {
	var (
		baseURL = flag.String("base-url", getenv("BASE_URL", "http://localhost:8083"), "booking service base url")
		phone   = flag.String("phone", getenv("CHAT_PHONE", "+254700000000"), "customer phone number")
		name    = flag.String("name", getenv("CHAT_NAME", ""), "customer name")
	)
	flag.Parse()

	c := client{baseURL: strings.TrimRight(*baseURL, "/"), http: &http.Client{Timeout: 30 * time.Second}}
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	gray := color.New(color.FgHiBlack)

	gray.Printf("chatting as %s with %s (/reset clears memory, /quit exits)\n", *phone, c.baseURL)
	in := bufio.NewScanner(os.Stdin)
	for {
		cyan.Print("you> ")
		if !in.Scan() {
			fmt.Println()
			return
		}
		text := strings.TrimSpace(in.Text())
		switch text {
		case "":
			continue
		case "/quit", "/exit":
			return
		case "/reset":
			if err := c.reset(*phone); err != nil {
				red.Println("reset failed:", err)
			} else {
				gray.Println("conversation cleared")
			}
			continue
		}
		reply, err := c.send(*phone, *name, text)
		if err != nil {
			red.Println("error:", err)
			continue
		}
		green.Println("bot> " + strings.ReplaceAll(reply, "\n", "\n     "))
	}
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
