package state

// defaultConfigFileName is looked up in the working directory.
const defaultConfigFileName = "jscat.json"

// GlobalOptions contains global config values that apply for all jscat sub-commands.
type GlobalOptions struct {
	ConfigFilePath string
	Quiet          bool
	NoColor        bool
	LogOutput      string
	LogFormat      string
	Verbose        bool
}

// GetDefaultGlobalOptions returns the default global flags.
func GetDefaultGlobalOptions() GlobalOptions {
	return GlobalOptions{
		ConfigFilePath: defaultConfigFileName,
		LogOutput:      "stderr",
		LogFormat:      "text",
	}
}

func consolidateGlobalFlags(defaultFlags GlobalOptions, env map[string]string) GlobalOptions {
	result := defaultFlags

	if val, ok := env["JSCAT_CONFIG"]; ok {
		result.ConfigFilePath = val
	}
	if val, ok := env["JSCAT_LOG_OUTPUT"]; ok {
		result.LogOutput = val
	}
	if val, ok := env["JSCAT_LOG_FORMAT"]; ok {
		result.LogFormat = val
	}
	if env["JSCAT_NO_COLOR"] != "" {
		result.NoColor = true
	}
	// Support https://no-color.org/, even an empty value should disable the
	// color output.
	if _, ok := env["NO_COLOR"]; ok {
		result.NoColor = true
	}
	if env["JSCAT_VERBOSE"] != "" {
		result.Verbose = true
	}
	if env["JSCAT_QUIET"] != "" {
		result.Quiet = true
	}
	return result
}
