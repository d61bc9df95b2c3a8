package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/innovators/mlms/mlms-backend/docs"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/swaggo/swag"
)

const jsonMediaType = "application/json"

// OpenAPI3Spec is the OpenAPI 3.0 document served next to the generated Swagger 2.0 one
type OpenAPI3Spec struct {
	OpenAPI    string         `json:"openapi"`
	Info       map[string]any `json:"info"`
	Servers    []Server       `json:"servers"`
	Paths      map[string]any `json:"paths"`
	Components map[string]any `json:"components,omitempty"`
}

// Server is an OpenAPI 3.0 server entry
type Server struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

// SwaggerHandler serves the API description
type SwaggerHandler struct {
	servers []Server
}

// NewSwaggerHandler creates a SwaggerHandler advertising the given public base URL
// in addition to the local development server
func NewSwaggerHandler(publicURL string) *SwaggerHandler {
	servers := []Server{{URL: "http://localhost:8080/api/v1", Description: "Local Development"}}
	if publicURL != "" {
		servers = append(servers, Server{URL: strings.TrimRight(publicURL, "/") + "/api/v1", Description: "Production"})
	}
	return &SwaggerHandler{servers: servers}
}

// ServeOpenAPI3Spec serves the swag output converted to OpenAPI 3.0
func (h *SwaggerHandler) ServeOpenAPI3Spec(c echo.Context) error {
	doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
	if err != nil {
		log.Error().Err(err).Msg("Failed to read swagger doc")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to read swagger doc"})
	}

	var swagger2 map[string]any
	if err := json.Unmarshal([]byte(doc), &swagger2); err != nil {
		log.Error().Err(err).Msg("Failed to parse swagger doc")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to parse swagger doc"})
	}

	return c.JSON(http.StatusOK, h.convert(swagger2))
}

func (h *SwaggerHandler) convert(swagger2 map[string]any) OpenAPI3Spec {
	info, _ := swagger2["info"].(map[string]any)

	paths := make(map[string]any)
	if in, ok := swagger2["paths"].(map[string]any); ok {
		for path, item := range in {
			methods, ok := item.(map[string]any)
			if !ok {
				continue
			}
			converted := make(map[string]any, len(methods))
			for method, op := range methods {
				if opMap, ok := op.(map[string]any); ok {
					converted[method] = convertOperation(opMap)
				}
			}
			paths[path] = converted
		}
	}

	var components map[string]any
	if definitions, ok := swagger2["definitions"].(map[string]any); ok {
		components = map[string]any{"schemas": rewriteRefs(definitions)}
	}

	return OpenAPI3Spec{
		OpenAPI:    "3.0.3",
		Info:       info,
		Servers:    h.servers,
		Paths:      paths,
		Components: components,
	}
}

// convertOperation moves body parameters into requestBody and response schemas
// under a media type. Bodies are JSON; file responses (the XLSX export) take the
// first non-JSON type the operation produces.
func convertOperation(op map[string]any) map[string]any {
	out := make(map[string]any, len(op))
	for key, value := range op {
		switch key {
		case "consumes", "produces", "parameters", "responses":
		default:
			out[key] = rewriteRefs(value)
		}
	}

	var params []any
	rawParams, _ := op["parameters"].([]any)
	for _, raw := range rawParams {
		param, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if param["in"] == "body" {
			content := map[string]any{jsonMediaType: map[string]any{"schema": rewriteRefs(param["schema"])}}
			out["requestBody"] = map[string]any{"required": param["required"] == true, "content": content}
			continue
		}
		params = append(params, convertParameter(param))
	}
	if len(params) > 0 {
		out["parameters"] = params
	}

	if responses, ok := op["responses"].(map[string]any); ok {
		fileType := fileMediaType(op["produces"])
		converted := make(map[string]any, len(responses))
		for code, raw := range responses {
			resp, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			entry := map[string]any{"description": resp["description"]}
			if schema, ok := resp["schema"].(map[string]any); ok {
				if schema["type"] == "file" && fileType != "" {
					entry["content"] = map[string]any{
						fileType: map[string]any{"schema": map[string]any{"type": "string", "format": "binary"}},
					}
				} else {
					entry["content"] = map[string]any{jsonMediaType: map[string]any{"schema": rewriteRefs(schema)}}
				}
			}
			converted[code] = entry
		}
		out["responses"] = converted
	}
	return out
}

func fileMediaType(produces any) string {
	list, _ := produces.([]any)
	for _, raw := range list {
		if mt, ok := raw.(string); ok && mt != jsonMediaType {
			return mt
		}
	}
	return ""
}

// convertParameter wraps the type of a path or query parameter in a schema
func convertParameter(param map[string]any) map[string]any {
	out := make(map[string]any)
	for _, field := range []string{"name", "in", "description", "required"} {
		if val, ok := param[field]; ok {
			out[field] = val
		}
	}
	schema := make(map[string]any)
	for _, field := range []string{"type", "format", "enum", "default"} {
		if val, ok := param[field]; ok {
			schema[field] = val
		}
	}
	if len(schema) > 0 {
		out["schema"] = schema
	}
	return out
}

// rewriteRefs points Swagger 2.0 definition refs at components/schemas
func rewriteRefs(data any) any {
	switch v := data.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			if ref, ok := value.(string); ok && key == "$ref" {
				out[key] = strings.Replace(ref, "#/definitions/", "#/components/schemas/", 1)
				continue
			}
			out[key] = rewriteRefs(value)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = rewriteRefs(item)
		}
		return out
	default:
		return data
	}
}
