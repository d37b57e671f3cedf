package api

import (
	"net/http"

	"github.com/oscillatelabsllc/argoquery/internal/predict"
)

type object = map[string]any

func ref(name string) object {
	return object{"$ref": "#/components/schemas/" + name}
}

func jsonContent(schema object) object {
	return object{"application/json": object{"schema": schema}}
}

func response(description string, schema object) object {
	r := object{"description": description}
	if schema != nil {
		r["content"] = jsonContent(schema)
	}
	return r
}

func operation(id, summary, description string, responses object) object {
	if _, ok := responses["default"]; !ok {
		responses["default"] = response("Error", ref("ErrorResponse"))
	}
	return object{
		"operationId": id,
		"summary":     summary,
		"description": description,
		"responses":   responses,
	}
}

func withBody(op object, schema object) object {
	op["requestBody"] = object{"required": true, "content": jsonContent(schema)}
	return op
}

func withParams(op object, params ...object) object {
	op["parameters"] = params
	return op
}

func param(name, in, typ, description string, required bool) object {
	return object{
		"name":        name,
		"in":          in,
		"required":    required,
		"description": description,
		"schema":      object{"type": typ},
	}
}

func props(kv ...any) object {
	out := object{}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i].(string)] = kv[i+1]
	}
	return out
}

func typed(t string) object { return object{"type": t} }

func arrayOf(items object) object { return object{"type": "array", "items": items} }

// handleOpenAPISpec returns the OpenAPI 3.0 specification
func (s *Server) handleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	modelNames := make([]string, 0, len(predict.ModelTypes))
	for _, m := range predict.ModelTypes {
		modelNames = append(modelNames, string(m))
	}

	spec := object{
		"openapi": "3.0.0",
		"info": object{
			"title":       "ARGO Query API",
			"description": "Conversational and structured access to ARGO float profiles with semantic search",
			"version":     "1.0.0",
			"contact": object{
				"name": "Oscillate Labs",
				"url":  "https://github.com/oscillatelabsllc/argoquery",
			},
			"license": object{
				"name": "MIT",
				"url":  "https://opensource.org/licenses/MIT",
			},
		},
		"servers": []object{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": object{
			"/health": object{
				"get": operation("getHealth", "Health check", "Check if the server is running", object{
					"200": response("Server is healthy", ref("StatusResponse")),
				}),
			},
			"/ready": object{
				"get": operation("getReady", "Readiness check", "Check that the measurement store answers", object{
					"200": response("Ready", ref("StatusResponse")),
					"503": response("Store unavailable", ref("StatusResponse")),
				}),
			},
			"/api/v1/chat": object{
				"post": withBody(operation("chat", "Ask a question",
					"Answer a natural-language question about ARGO profiles. Pipeline failures return a fallback narrative, never an error body.",
					object{
						"200": response("Chat reply", ref("ChatResponse")),
						"429": response("Rate limited", ref("ErrorResponse")),
					}), ref("ChatRequest")),
			},
			"/api/v1/profiles": object{
				"post": withBody(operation("ingestProfiles", "Add profiles", "Store profiles and index them for semantic search", object{
					"201": response("Profiles stored", object{"type": "object", "properties": props(
						"success", typed("boolean"), "ids", arrayOf(typed("string")), "count", typed("integer"))}),
				}), object{"type": "object", "required": []string{"profiles"}, "properties": props(
					"profiles", arrayOf(ref("Profile")))}),
				"get": withParams(operation("listProfiles", "List profiles", "Newest profiles first", object{
					"200": response("Profiles", ref("ProfileList")),
				}), param("limit", "query", "integer", "Maximum profiles (1-1000, default 50)", false)),
			},
			"/api/v1/profiles/{id}": object{
				"get": withParams(operation("getProfile", "Get a profile", "Fetch one profile by id", object{
					"200": response("Profile", ref("Profile")),
					"404": response("Not found", ref("ErrorResponse")),
				}), param("id", "path", "string", "Profile id", true)),
				"delete": withParams(operation("deleteProfile", "Delete a profile", "Remove a profile and its embedding", object{
					"200": response("Deleted", nil),
					"404": response("Not found", ref("ErrorResponse")),
				}), param("id", "path", "string", "Profile id", true)),
			},
			"/api/v1/query": object{
				"post": withBody(operation("queryProfiles", "Structured query",
					"Translate a question into filters and run it against the store", object{
						"200": response("Query result", ref("QueryResponse")),
					}), object{"type": "object", "required": []string{"query"}, "properties": props(
					"query", typed("string"), "limit", typed("integer"))}),
			},
			"/api/v1/search": object{
				"get": withParams(operation("searchProfiles", "Semantic search",
					"Rank profiles by similarity to free text", object{
						"200": response("Ranked profiles", object{"type": "object", "properties": props(
							"results", arrayOf(ref("ScoredProfile")), "count", typed("integer"))}),
					}),
					param("query", "query", "string", "Free-text description", true),
					param("k", "query", "integer", "Number of results (default 10)", false)),
			},
			"/api/v1/stats": object{
				"get": operation("getStats", "Database statistics", "Profile counts, time span, bounding box and index status", object{
					"200": response("Statistics", ref("Status")),
				}),
			},
			"/api/v1/predict/{model}": object{
				"post": withBody(withParams(operation("predict", "Model prediction",
					"Run a model server prediction on raw features or a stored profile", object{
						"200": response("Prediction", ref("Prediction")),
						"503": response("Model server unavailable", ref("ErrorResponse")),
					}), object{"name": "model", "in": "path", "required": true,
					"schema": object{"type": "string", "enum": modelNames}}),
					object{"type": "object", "properties": props(
						"profile_id", typed("string"),
						"features", object{"type": "object", "additionalProperties": typed("number")})}),
			},
		},
		"components": object{
			"schemas": object{
				"ChatRequest": object{
					"type":     "object",
					"required": []string{"message"},
					"properties": props(
						"message", typed("string"),
						"mode", object{"type": "string", "enum": []string{"conversation", "explorer"}}),
				},
				"ChatResponse": object{
					"type": "object",
					"properties": props(
						"content", typed("string"),
						"actions", arrayOf(ref("Action"))),
				},
				"Action": object{
					"type": "object",
					"properties": props(
						"type", object{"type": "string", "enum": []string{"chart", "map", "table", "export", "broaden"}},
						"label", typed("string"),
						"data", typed("object")),
				},
				"Profile": object{
					"type":     "object",
					"required": []string{"collected_at", "latitude", "longitude"},
					"properties": props(
						"id", typed("string"),
						"platform_number", typed("string"),
						"cycle_number", typed("integer"),
						"collected_at", object{"type": "string", "format": "date-time"},
						"latitude", typed("number"),
						"longitude", typed("number"),
						"mixed_layer_depth", typed("number"),
						"thermocline_depth", typed("number"),
						"salinity_min_depth", typed("number"),
						"salinity_max_depth", typed("number"),
						"mean_stratification", typed("number"),
						"ocean_heat_content", typed("number"),
						"surface_temp", typed("number"),
						"surface_salinity", typed("number"),
						"pressure_mean", typed("number"),
						"level_count", typed("integer"),
						"direction", typed("string"),
						"qc", object{"type": "object", "properties": props(
							"temperature", typed("string"),
							"salinity", typed("string"),
							"pressure", typed("string"))}),
				},
				"ProfileList": object{
					"type": "object",
					"properties": props(
						"profiles", arrayOf(ref("Profile")),
						"count", typed("integer")),
				},
				"ScoredProfile": object{
					"type": "object",
					"properties": props(
						"profile", ref("Profile"),
						"similarity", typed("number"),
						"explanation", typed("string")),
				},
				"QueryResponse": object{
					"type": "object",
					"properties": props(
						"intent", typed("object"),
						"store_query", typed("string"),
						"result", typed("object")),
				},
				"Status": object{
					"type": "object",
					"properties": props(
						"store", typed("object"),
						"indexed_records", typed("integer"),
						"index_version", typed("string")),
				},
				"Prediction": object{
					"type": "object",
					"properties": props(
						"model", typed("string"),
						"prediction", typed("integer"),
						"isGood", typed("boolean"),
						"regionId", typed("integer"),
						"regionName", typed("string"),
						"predictedSalinity", typed("number"),
						"confidence", typed("number")),
				},
				"StatusResponse": object{
					"type":       "object",
					"properties": props("status", typed("string"), "error", typed("string")),
				},
				"ErrorResponse": object{
					"type":       "object",
					"properties": props("error", typed("string")),
				},
			},
		},
	}

	successResponse(w, spec)
}
