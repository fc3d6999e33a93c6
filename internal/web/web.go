package web

import (
	"embed"
	"io/fs"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

//go:embed static/*
var staticFS embed.FS

// Register 在根路径挂载浏览器界面
func Register(r chi.Router) {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		log.Printf("[web] static fs error: %v", err)
		return
	}
	r.Handle("/*", http.FileServer(http.FS(sub)))
}
