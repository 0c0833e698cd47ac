package build

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

// EnvError indicates the build environment is not set up for the requested
// build. The usual fix is `source build/envsetup.sh && lunch`.
type EnvError struct {
	Missing []string
	Reason  string
}

func (e *EnvError) Error() string {
	if len(e.Missing) > 0 {
		return "build environment not set up, missing " + strings.Join(e.Missing, ", ") +
			" (run `source build/envsetup.sh && lunch` first)"
	}
	return "build environment mismatch: " + e.Reason
}

// Environment returns the process environment with the variables of envFile
// (a dotenv file, optional) layered on top.
func Environment(envFile string) ([]string, error) {
	env := os.Environ()
	if envFile == "" {
		return env, nil
	}

	extra, err := godotenv.Read(envFile)
	if err != nil {
		return nil, fmt.Errorf("read env file %s: %w", envFile, err)
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env, nil
}

// lookup returns the last value of key in env, matching exec.Cmd semantics
func lookup(env []string, key string) (string, bool) {
	prefix := key + "="
	for i := len(env) - 1; i >= 0; i-- {
		if strings.HasPrefix(env[i], prefix) {
			return env[i][len(prefix):], true
		}
	}
	return "", false
}

// CheckEnv verifies required variables are set and, when target or variant
// are non-empty, that the lunch combo matches them.
func CheckEnv(env []string, required []string, target, variant string) error {
	var missing []string
	for _, key := range required {
		if v, ok := lookup(env, key); !ok || v == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return &EnvError{Missing: missing}
	}

	if target != "" {
		product, _ := lookup(env, "TARGET_PRODUCT")
		if product == "" {
			return &EnvError{Missing: []string{"TARGET_PRODUCT"}}
		}
		// lunch products are <vendor>_<device>, e.g. aosp_hammerhead
		if product != target && !strings.HasSuffix(product, "_"+target) {
			return &EnvError{Reason: fmt.Sprintf("TARGET_PRODUCT=%s does not build target %s", product, target)}
		}
	}

	if variant != "" {
		got, _ := lookup(env, "TARGET_BUILD_VARIANT")
		if got == "" {
			return &EnvError{Missing: []string{"TARGET_BUILD_VARIANT"}}
		}
		if got != variant {
			return &EnvError{Reason: fmt.Sprintf("TARGET_BUILD_VARIANT=%s, expected %s", got, variant)}
		}
	}

	return nil
}
