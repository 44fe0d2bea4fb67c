package config

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/timmy/llavacap/internal/domain"
)

// CLI flag names.
const (
	FlagConfig           = "config"
	FlagModel            = "model"
	FlagTemperature      = "temperature"
	FlagGPULayers        = "gpu-layers"
	FlagNoPreprocess     = "no-preprocess"
	FlagSecondaryCaption = "secondary-caption"
	FlagLogging          = "logging"
	FlagSysLogging       = "sys-logging"
	FlagOllamaAddress    = "ollama-address"
	FlagDirectCaption    = "direct-caption"
	FlagFailFast         = "fail-fast"
	FlagJournal          = "journal"
)

// RegisterFlags defines the CLI surface on fs. Help defaults are the built-in
// ones; the effective value is resolved by Load.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(FlagConfig, "", "Path to config file")
	fs.String(FlagModel, string(domain.ModelOllama),
		"Model to use for captioning: "+strings.Join(domain.ModelKindNames(), ", ")+" (env: LLAVA_PROCESSOR)")
	fs.Float64(FlagTemperature, 0.0, "Model temperature (env: TEMPERATURE)")
	fs.Int(FlagGPULayers, -1, "Number of GPU layers (-1 for all) (env: N_GPU_LAYERS)")
	fs.Bool(FlagNoPreprocess, false, "Disable text preprocessing (env: PREPROCESSOR)")
	fs.Bool(FlagSecondaryCaption, false, "Enable secondary captioning (env: SECONDARY_CAPTION)")
	fs.Bool(FlagLogging, false, "Enable detailed logging (env: LOGGING)")
	fs.Bool(FlagSysLogging, false, "Enable system logging (env: SYS_LOGGING)")
	fs.String(FlagOllamaAddress, "127.0.0.1:11434", "Ollama address in host:port format (env: OLLAMA_REMOTEHOST)")
	fs.Bool(FlagDirectCaption, false, "Directly caption images without prompt comparison (env: DIRECT_CAPTION)")
	fs.Bool(FlagFailFast, false, "Abort the run on the first file that fails (env: FAIL_FAST)")
	fs.String(FlagJournal, "", "Record the run in this database (sqlite path or postgres DSN) (env: JOURNAL_DSN)")
}
