// Package config loads toolshelf settings.
//
// Settings come from, in increasing precedence: built-in defaults, a YAML
// file, and TOOLSHELF_* environment variables (dots in key paths become
// underscores, e.g. TOOLSHELF_FAVORITES_BACKEND). Before the file is parsed,
// ${VAR} references in it are expanded; a reference to an unset variable is
// an error, and $$ yields a literal dollar sign.
//
//	cfg, err := config.Load("toolshelf.yaml")
//	if err != nil {
//	    return err
//	}
//	obsCfg := cfg.ObserveConfig()
package config
