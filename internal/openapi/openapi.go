package openapi

func number(description string) map[string]any {
	return map[string]any{"type": "number", "description": description}
}

func nullableNumber(description string) map[string]any {
	return map[string]any{"type": "number", "nullable": true, "description": description}
}

func ingestOperation(serviceName string, operationID string) map[string]any {
	return map[string]any{
		"post": map[string]any{
			"tags":        []string{"iSpindel"},
			"summary":     "Endpoint to receive iSpindel metrics",
			"description": "The iSpindel wakes up and sends an HTTP POST request (\"Generic HTTP\" service) to this endpoint. Accepted reports are published to the history topic with key " + serviceName + ".",
			"operationId": operationID,
			"requestBody": map[string]any{
				"required": true,
				"content": map[string]any{
					"application/json": map[string]any{
						"schema": map[string]any{"$ref": "#/components/schemas/Report"},
					},
				},
			},
			"responses": map[string]any{
				"200": map[string]any{"description": "Report published"},
				"400": map[string]any{"description": "name missing or blank (whitespace only), temperature missing or null, keys are case-sensitive, or body is not a report"},
				"413": map[string]any{"description": "Body too large"},
				"503": map[string]any{"description": "Message bus unavailable"},
			},
		},
	}
}

// Spec returns the OpenAPI 3 document served at /openapi.json.
// It is hand-maintained to avoid codegen tooling.
func Spec(serviceName string) map[string]any {
	prefix := "/" + serviceName
	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   serviceName + " API",
			"version": "1.0.0",
		},
		"paths": map[string]any{
			"/healthz": map[string]any{
				"get": map[string]any{
					"tags":        []string{"system"},
					"summary":     "Health check",
					"operationId": "healthz",
					"responses":   map[string]any{"200": map[string]any{"description": "OK"}},
				},
			},
			prefix + "/_service/status": map[string]any{
				"get": map[string]any{
					"tags":        []string{"system"},
					"summary":     "Service status",
					"operationId": "serviceStatus",
					"responses": map[string]any{
						"200": map[string]any{
							"description": "Status",
							"content": map[string]any{
								"application/json": map[string]any{
									"schema": map[string]any{
										"type":       "object",
										"properties": map[string]any{"status": map[string]any{"type": "string"}},
									},
								},
							},
						},
					},
				},
			},
			"/ispindel":          ingestOperation(serviceName, "ispindel"),
			prefix + "/ispindel": ingestOperation(serviceName, "ispindelPrefixed"),
		},
		"components": map[string]any{
			"schemas": map[string]any{
				"Report": map[string]any{
					"type":     "object",
					"required": []string{"name", "temperature"},
					"properties": map[string]any{
						"name":        map[string]any{"type": "string", "minLength": 1, "pattern": `\S`, "description": "Device name, must not be blank"},
						"temperature": number("Degrees, unit as configured on the device"),
						"battery":     nullableNumber("Battery voltage"),
						"gravity":     nullableNumber("Specific gravity estimate"),
						"angle":       nullableNumber("Tilt angle"),
						"RSSI":        nullableNumber("WiFi signal strength"),
					},
				},
				"HistoryEvent": map[string]any{
					"type":     "object",
					"required": []string{"key", "data"},
					"properties": map[string]any{
						"key": map[string]any{"type": "string", "description": "Publishing service name"},
						"data": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"temperature": number("Degrees"),
								"battery":     nullableNumber("Battery voltage"),
								"angle":       nullableNumber("Tilt angle"),
								"rssi":        nullableNumber("WiFi signal strength"),
								"gravity":     nullableNumber("Specific gravity estimate"),
							},
						},
					},
				},
			},
		},
	}
}
