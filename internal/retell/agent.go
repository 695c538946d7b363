package retell

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AgentConfig describes the calling agent: voice, language, and prompts.
// Loaded from a YAML file so the sales script can change without a rebuild.
type AgentConfig struct {
	AgentName    string `yaml:"agentName"`
	VoiceID      string `yaml:"voiceId"`
	Language     string `yaml:"language"`
	LLMID        string `yaml:"llmId"`
	BeginMessage string `yaml:"beginMessage"`
	Prompt       string `yaml:"prompt"`
}

// DefaultAgentConfig is used when no YAML file is present.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		AgentName:    "AI Lead Gen Agent",
		VoiceID:      "11labs-adriana",
		Language:     "en-US",
		LLMID:        "gpt-4o-mini",
		BeginMessage: "Hello! I'm calling to discuss how we can help generate more leads for your business. How are you doing today?",
		Prompt:       "You are an AI sales representative. Build rapport, understand the prospect's lead generation challenges, and book a 15-minute discovery call.",
	}
}

// LoadAgentConfig reads the agent configuration from path. A missing file is
// not an error; the default configuration is returned instead.
func LoadAgentConfig(path string) (AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultAgentConfig(), nil
		}
		return AgentConfig{}, fmt.Errorf("read agent config: %w", err)
	}

	cfg := DefaultAgentConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AgentConfig{}, fmt.Errorf("parse agent config: %w", err)
	}
	if cfg.AgentName == "" {
		return AgentConfig{}, fmt.Errorf("agent config: agentName is required")
	}

	return cfg, nil
}

type createAgentRequest struct {
	AgentName      string              `json:"agent_name"`
	VoiceID        string              `json:"voice_id"`
	Language       string              `json:"language"`
	ResponseEngine responseEngineBlock `json:"response_engine"`
	GeneralPrompt  string              `json:"general_prompt"`
}

type responseEngineBlock struct {
	Type         string `json:"type"`
	LLMID        string `json:"llm_id"`
	BeginMessage string `json:"begin_message"`
}

func (c AgentConfig) toRequest() createAgentRequest {
	return createAgentRequest{
		AgentName: c.AgentName,
		VoiceID:   c.VoiceID,
		Language:  c.Language,
		ResponseEngine: responseEngineBlock{
			Type:         "retell_llm",
			LLMID:        c.LLMID,
			BeginMessage: c.BeginMessage,
		},
		GeneralPrompt: c.Prompt,
	}
}
