package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zhouzirui/poet-chat/backend/internal/client"
	"github.com/zhouzirui/poet-chat/backend/internal/model/persona"
	"github.com/zhouzirui/poet-chat/backend/internal/model/speech"
)

const helpText = `commands:
  /record <file>  transcribe an audio file into the input line
  /speak          speak the last reply into -speak-dir
  /history        print the transcript
  /quit           exit
an empty line sends the transcribed input`

var audioTypes = map[string]string{
	".webm": "audio/webm",
	".mp3":  "audio/mpeg",
	".mpga": "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".mp4":  "audio/mp4",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
}

type cli struct {
	session  *client.Session
	speakDir string
	autoSay  bool
	timeout  time.Duration
	out      io.Writer
}

func main() {
	log.SetFlags(log.Ltime)

	server := flag.String("server", "http://localhost:8080", "AI Poet Chat 服务地址")
	transport := flag.String("transport", "http", "聊天传输方式: http 或 ws")
	speakDir := flag.String("speak-dir", "", "将每条回复合成为 mp3 写入该目录，留空则不自动朗读")
	timeout := flag.Duration("timeout", 60*time.Second, "单次请求超时时间")
	flag.Parse()

	relay := client.NewRelay(*server, *timeout)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	p, err := relay.Persona(ctx)
	cancel()
	if err != nil {
		log.Printf("[WARN] 无法获取 persona，使用内置设定: %v", err)
		p = persona.Seed()[0]
	}

	var completer client.Completer = relay
	switch *transport {
	case "http":
	case "ws":
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		ws, err := client.DialWSChat(ctx, *server)
		cancel()
		if err != nil {
			log.Fatalf("WebSocket 连接失败: %v", err)
		}
		defer ws.Close()
		completer = ws
	default:
		flag.Usage()
		log.Fatalf("未知的 -transport: %s", *transport)
	}

	c := &cli{
		session:  client.NewSession(p.SystemPrompt, completer, relay),
		speakDir: *speakDir,
		autoSay:  *speakDir != "",
		timeout:  *timeout,
		out:      os.Stdout,
	}

	fmt.Fprintf(c.out, "%s: %s\n%s\n\n", p.Title, p.Tagline, helpText)
	c.run(os.Stdin)
}

func (c *cli) run(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			return
		}
		if !c.handle(strings.TrimSpace(scanner.Text())) {
			return
		}
	}
}

// handle 处理一行输入，返回 false 表示退出
func (c *cli) handle(line string) bool {
	switch {
	case line == "/quit":
		return false
	case line == "/history":
		c.printHistory()
	case line == "/speak":
		if msg, ok := c.session.LastReply(); ok {
			c.speak(msg.ID, msg.Content)
		} else {
			fmt.Fprintln(c.out, "nothing to speak yet")
		}
	case strings.HasPrefix(line, "/record"):
		c.record(strings.TrimSpace(strings.TrimPrefix(line, "/record")))
	case line == "":
		if pending := c.session.Input(); pending != "" {
			c.submit(pending)
		}
	case strings.HasPrefix(line, "/"):
		fmt.Fprintln(c.out, helpText)
	default:
		c.submit(line)
	}
	return true
}

func (c *cli) submit(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	msg, err := c.session.Submit(ctx, text)
	if errors.Is(err, client.ErrEmptyInput) || errors.Is(err, client.ErrBusy) {
		fmt.Fprintf(c.out, "! %v\n", err)
		return
	}
	if err != nil {
		log.Printf("[chat] %v", err)
	}
	fmt.Fprintf(c.out, "Whomp: %s\n", msg.Content)

	if c.autoSay && err == nil {
		c.speak(msg.ID, msg.Content)
	}
}

func (c *cli) record(path string) {
	if path == "" {
		fmt.Fprintln(c.out, "usage: /record <file>")
		return
	}
	clip, err := clipFromFile(path)
	if err != nil {
		fmt.Fprintf(c.out, "! %v\n", err)
		return
	}

	if err := c.session.StartRecording(); err != nil {
		fmt.Fprintf(c.out, "! %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	text, err := c.session.StopRecording(ctx, clip)
	if err != nil {
		fmt.Fprintf(c.out, "! %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "transcribed: %s\n(press enter to send)\n", text)
}

func (c *cli) speak(id, text string) {
	dir := c.speakDir
	if dir == "" {
		dir = "."
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	audio, err := c.session.Speak(ctx, text)
	if err != nil {
		fmt.Fprintf(c.out, "! %v\n", err)
		return
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(c.out, "! %v\n", err)
		return
	}
	out := filepath.Join(dir, id+".mp3")
	if err := os.WriteFile(out, audio, 0o644); err != nil {
		fmt.Fprintf(c.out, "! %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "saved %s (%d bytes)\n", out, len(audio))
}

func (c *cli) printHistory() {
	for _, msg := range c.session.Visible() {
		fmt.Fprintf(c.out, "[%s] %s: %s\n", msg.Timestamp.Local().Format(time.Kitchen), msg.Role, msg.Content)
	}
}

// clipFromFile 读取音频文件，按扩展名推断 MIME 类型
func clipFromFile(path string) (speech.Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return speech.Clip{}, fmt.Errorf("read audio: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	contentType, ok := audioTypes[ext]
	if !ok {
		contentType = mime.TypeByExtension(ext)
	}

	return speech.Clip{
		Data:        data,
		Filename:    filepath.Base(path),
		ContentType: contentType,
	}.Normalized(), nil
}
