package handlers

import (
	"encoding/json"
	"net/http"
)

func queryParam(name, description string, schema map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    false,
		"schema":      schema,
	}
}

var paginationParams = []map[string]interface{}{
	queryParam("page", "Page number (default: 1)", map[string]interface{}{"type": "integer", "default": 1}),
	queryParam("limit", "Records per page (default: 100, max: 1000)", map[string]interface{}{"type": "integer", "default": 100, "maximum": 1000}),
}

func jsonResponse(description, schemaRef string) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]string{"$ref": "#/components/schemas/" + schemaRef},
			},
		},
	}
}

func paginatedOf(item string) map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"data":        map[string]interface{}{"type": "array", "items": map[string]string{"$ref": "#/components/schemas/" + item}},
			"total":       map[string]string{"type": "integer"},
			"page":        map[string]string{"type": "integer"},
			"limit":       map[string]string{"type": "integer"},
			"total_pages": map[string]string{"type": "integer"},
		},
	}
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the AMY API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	yearParam := queryParam("year", "Filter by calendar year", map[string]interface{}{"type": "integer"})
	stationParam := queryParam("station_id", "Filter by WMO station identifier", map[string]interface{}{"type": "string"})
	outcomeParams := []map[string]interface{}{
		queryParam("run_id", "Filter by pipeline run ID", map[string]interface{}{"type": "string", "format": "uuid"}),
		stationParam,
		yearParam,
		queryParam("status", "Filter by terminal task status", map[string]interface{}{
			"type": "string",
			"enum": []string{"EXCLUDED", "UNFILLABLE", "DONE", "FAILED"},
		}),
	}

	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "AMY Weather API",
			"description": "Stations, completeness verdicts and generation outcomes of the Actual Meteorological Year pipeline",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/stations": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "List stations",
					"parameters": paginationParams,
					"responses": map[string]interface{}{
						"200": jsonResponse("Station page", "StationPage"),
					},
				},
			},
			"/api/stations/{id}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Get a station",
					"parameters": []map[string]interface{}{
						{"name": "id", "in": "path", "required": true, "schema": map[string]string{"type": "string"}},
					},
					"responses": map[string]interface{}{
						"200": jsonResponse("Station", "Station"),
						"404": jsonResponse("Unknown station", "Error"),
					},
				},
			},
			"/api/verdicts": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "List completeness verdicts",
					"description": "Completeness screening results per station-year",
					"parameters": append([]map[string]interface{}{
						stationParam,
						yearParam,
						queryParam("classification", "Filter by classification", map[string]interface{}{
							"type": "string",
							"enum": []string{"USABLE", "EXCLUDED_TOTAL", "EXCLUDED_CONSECUTIVE"},
						}),
					}, paginationParams...),
					"responses": map[string]interface{}{
						"200": jsonResponse("Verdict page", "VerdictPage"),
						"400": jsonResponse("Invalid parameters", "Error"),
					},
				},
			},
			"/api/outcomes": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "List task outcomes",
					"parameters": append(append([]map[string]interface{}{}, outcomeParams...), paginationParams...),
					"responses": map[string]interface{}{
						"200": jsonResponse("Outcome page", "OutcomePage"),
						"400": jsonResponse("Invalid parameters", "Error"),
					},
				},
			},
			"/api/outcomes/summary": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":    "Summarize task outcomes by status",
					"parameters": outcomeParams,
					"responses": map[string]interface{}{
						"200": jsonResponse("Outcome summary", "OutcomeSummary"),
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Health check",
					"responses": map[string]interface{}{
						"200": map[string]string{"description": "Service and database are healthy"},
						"503": map[string]string{"description": "Database unreachable"},
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": map[string]string{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"Station": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"station_id": map[string]string{"type": "string"},
						"name":       map[string]string{"type": "string"},
						"latitude":   map[string]string{"type": "number"},
						"longitude":  map[string]string{"type": "number"},
					},
				},
				"Verdict": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"station_id":              map[string]string{"type": "string"},
						"year":                    map[string]string{"type": "integer"},
						"total_missing":           map[string]string{"type": "integer"},
						"max_consecutive_missing": map[string]string{"type": "integer"},
						"classification":          map[string]string{"type": "string"},
						"source_file":             map[string]string{"type": "string"},
					},
				},
				"Outcome": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"id":             map[string]string{"type": "integer"},
						"run_id":         map[string]string{"type": "string"},
						"station_id":     map[string]string{"type": "string"},
						"year":           map[string]string{"type": "integer"},
						"source":         map[string]string{"type": "string"},
						"status":         map[string]string{"type": "string"},
						"stage":          map[string]string{"type": "string"},
						"reason":         map[string]string{"type": "string"},
						"classification": map[string]string{"type": "string"},
						"interpolated":   map[string]string{"type": "integer"},
						"imputed":        map[string]string{"type": "integer"},
						"output_path":    map[string]string{"type": "string"},
						"duration_ms":    map[string]string{"type": "integer"},
					},
				},
				"OutcomeSummary": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"run_id":       map[string]string{"type": "string"},
						"total":        map[string]string{"type": "integer"},
						"by_status":    map[string]interface{}{"type": "object", "additionalProperties": map[string]string{"type": "integer"}},
						"interpolated": map[string]string{"type": "integer"},
						"imputed":      map[string]string{"type": "integer"},
					},
				},
				"StationPage": paginatedOf("Station"),
				"VerdictPage": paginatedOf("Verdict"),
				"OutcomePage": paginatedOf("Outcome"),
				"Error": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"error":   map[string]string{"type": "string"},
						"message": map[string]string{"type": "string"},
						"code":    map[string]string{"type": "integer"},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
