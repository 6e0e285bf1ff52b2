package techstack

import (
	"strings"

	"repobrief/internal/types"
)

type known struct {
	name string
	kind types.TechKind
}

// wellKnown maps lowercased package identifiers from any ecosystem to a
// display name. Unlisted packages keep their raw identifier.
var wellKnown = map[string]known{
	// JavaScript / TypeScript
	"react":            {"React", types.KindFramework},
	"react-dom":        {"React", types.KindFramework},
	"next":             {"Next.js", types.KindFramework},
	"vue":              {"Vue", types.KindFramework},
	"nuxt":             {"Nuxt", types.KindFramework},
	"svelte":           {"Svelte", types.KindFramework},
	"@angular/core":    {"Angular", types.KindFramework},
	"express":          {"Express", types.KindFramework},
	"fastify":          {"Fastify", types.KindFramework},
	"koa":              {"Koa", types.KindFramework},
	"@nestjs/core":     {"NestJS", types.KindFramework},
	"electron":         {"Electron", types.KindFramework},
	"typescript":       {"TypeScript", types.KindLanguage},
	"vite":             {"Vite", types.KindPlatform},
	"webpack":          {"webpack", types.KindPlatform},
	"jest":             {"Jest", types.KindFramework},
	"vitest":           {"Vitest", types.KindFramework},
	"tailwindcss":      {"Tailwind CSS", types.KindFramework},
	"prisma":           {"Prisma", types.KindFramework},
	"@prisma/client":   {"Prisma", types.KindFramework},
	"mongoose":         {"MongoDB", types.KindPlatform},
	"pg":               {"PostgreSQL", types.KindPlatform},
	"redis":            {"Redis", types.KindPlatform},
	"ioredis":          {"Redis", types.KindPlatform},
	"graphql":          {"GraphQL", types.KindFramework},
	"socket.io":        {"Socket.IO", types.KindFramework},
	"three":            {"three.js", types.KindFramework},
	"@tensorflow/tfjs": {"TensorFlow", types.KindFramework},

	// Python
	"django":          {"Django", types.KindFramework},
	"flask":           {"Flask", types.KindFramework},
	"fastapi":         {"FastAPI", types.KindFramework},
	"starlette":       {"Starlette", types.KindFramework},
	"pydantic":        {"Pydantic", types.KindFramework},
	"sqlalchemy":      {"SQLAlchemy", types.KindFramework},
	"celery":          {"Celery", types.KindFramework},
	"torch":           {"PyTorch", types.KindFramework},
	"pytorch":         {"PyTorch", types.KindFramework},
	"tensorflow":      {"TensorFlow", types.KindFramework},
	"keras":           {"Keras", types.KindFramework},
	"jax":             {"JAX", types.KindFramework},
	"numpy":           {"NumPy", types.KindFramework},
	"pandas":          {"pandas", types.KindFramework},
	"scikit-learn":    {"scikit-learn", types.KindFramework},
	"transformers":    {"Hugging Face Transformers", types.KindFramework},
	"langchain":       {"LangChain", types.KindFramework},
	"openai":          {"OpenAI API", types.KindFramework},
	"pytest":          {"pytest", types.KindFramework},
	"psycopg2":        {"PostgreSQL", types.KindPlatform},
	"psycopg2-binary": {"PostgreSQL", types.KindPlatform},
	"uvicorn":         {"Uvicorn", types.KindPlatform},
	"gunicorn":        {"Gunicorn", types.KindPlatform},
	"streamlit":       {"Streamlit", types.KindFramework},
	"click":           {"Click", types.KindFramework},
	"typer":           {"Typer", types.KindFramework},

	// Go
	"github.com/gin-gonic/gin":     {"Gin", types.KindFramework},
	"github.com/labstack/echo/v4":  {"Echo", types.KindFramework},
	"github.com/gofiber/fiber/v2":  {"Fiber", types.KindFramework},
	"github.com/go-chi/chi/v5":     {"chi", types.KindFramework},
	"github.com/gorilla/mux":       {"Gorilla Mux", types.KindFramework},
	"github.com/spf13/cobra":       {"Cobra", types.KindFramework},
	"google.golang.org/grpc":       {"gRPC", types.KindFramework},
	"google.golang.org/protobuf":   {"Protocol Buffers", types.KindFramework},
	"gorm.io/gorm":                 {"GORM", types.KindFramework},
	"entgo.io/ent":                 {"ent", types.KindFramework},
	"github.com/jackc/pgx/v5":      {"PostgreSQL", types.KindPlatform},
	"github.com/lib/pq":            {"PostgreSQL", types.KindPlatform},
	"github.com/redis/go-redis/v9": {"Redis", types.KindPlatform},
	"github.com/stretchr/testify":  {"testify", types.KindFramework},
	"connectrpc.com/connect":       {"Connect RPC", types.KindFramework},
	"github.com/aws/aws-sdk-go-v2": {"AWS SDK", types.KindPlatform},
	"k8s.io/client-go":             {"Kubernetes", types.KindPlatform},

	// Rust
	"tokio":     {"Tokio", types.KindFramework},
	"serde":     {"Serde", types.KindFramework},
	"actix-web": {"Actix Web", types.KindFramework},
	"axum":      {"Axum", types.KindFramework},
	"rocket":    {"Rocket", types.KindFramework},
	"clap":      {"clap", types.KindFramework},
	"diesel":    {"Diesel", types.KindFramework},
	"sqlx":      {"SQLx", types.KindFramework},

	// JVM
	"spring-boot-starter":     {"Spring Boot", types.KindFramework},
	"spring-boot-starter-web": {"Spring Boot", types.KindFramework},
	"junit":                   {"JUnit", types.KindFramework},
	"junit-jupiter":           {"JUnit", types.KindFramework},
	"kotlinx-coroutines-core": {"Kotlin Coroutines", types.KindFramework},

	// Ruby / PHP
	"rails":             {"Ruby on Rails", types.KindFramework},
	"sinatra":           {"Sinatra", types.KindFramework},
	"rspec":             {"RSpec", types.KindFramework},
	"laravel/framework": {"Laravel", types.KindFramework},
	"symfony/symfony":   {"Symfony", types.KindFramework},
}

// dockerImages maps base image names to the technology they imply.
var dockerImages = map[string]known{
	"python":          {"Python", types.KindLanguage},
	"node":            {"Node.js", types.KindPlatform},
	"golang":          {"Go", types.KindLanguage},
	"rust":            {"Rust", types.KindLanguage},
	"openjdk":         {"Java", types.KindLanguage},
	"eclipse-temurin": {"Java", types.KindLanguage},
	"ruby":            {"Ruby", types.KindLanguage},
	"php":             {"PHP", types.KindLanguage},
	"nginx":           {"Nginx", types.KindPlatform},
	"postgres":        {"PostgreSQL", types.KindPlatform},
	"mysql":           {"MySQL", types.KindPlatform},
	"mariadb":         {"MariaDB", types.KindPlatform},
	"mongo":           {"MongoDB", types.KindPlatform},
	"redis":           {"Redis", types.KindPlatform},
	"rabbitmq":        {"RabbitMQ", types.KindPlatform},
	"elasticsearch":   {"Elasticsearch", types.KindPlatform},
	"minio":           {"MinIO", types.KindPlatform},
	"kafka":           {"Kafka", types.KindPlatform},
}

// displayName resolves a raw dependency identifier.
func displayName(raw string) known {
	key := strings.ToLower(strings.TrimSpace(raw))
	if k, ok := wellKnown[key]; ok {
		return k
	}
	if strings.HasPrefix(key, "spring-boot-starter") {
		return known{"Spring Boot", types.KindFramework}
	}
	return known{strings.TrimSpace(raw), types.KindDependency}
}

// imageName resolves a container image reference such as
// "docker.io/library/python:3.12-slim" to a technology.
func imageName(ref string) (known, bool) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if i := strings.IndexAny(ref, "@"); i >= 0 {
		ref = ref[:i]
	}
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		ref = ref[i+1:]
	}
	if i := strings.IndexByte(ref, ':'); i >= 0 {
		ref = ref[:i]
	}
	k, ok := dockerImages[ref]
	return k, ok
}
