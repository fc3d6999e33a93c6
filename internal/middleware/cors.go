package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS 允许浏览器跨域调用 /api，预检结果缓存五分钟
var CORS = cors.Handler(cors.Options{
	AllowedOrigins:   []string{"https://*", "http://*"},
	AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
	ExposedHeaders:   []string{"Content-Length", "X-Request-Id"},
	AllowCredentials: false,
	MaxAge:           300,
})
