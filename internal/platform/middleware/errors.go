package middleware

// errorBody is the JSON envelope for errors written directly by middleware.
func errorBody(message string) map[string]interface{} {
	return map[string]interface{}{
		"status":  "error",
		"message": message,
	}
}
