package utils

import (
	"encoding/json"

	"k8s.io/klog/v2"
)

func ToJSON(v any) string {
	jsonData, err := json.Marshal(v)
	if err != nil {
		klog.Errorf("json marshal failed: %v", err)
		return ""
	}
	return string(jsonData)
}

// ToJSONIndent renders v as indented JSON, for prompt payloads and debug logs.
func ToJSONIndent(v any) string {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		klog.Errorf("json marshal failed: %v", err)
		return ""
	}
	return string(jsonData)
}
