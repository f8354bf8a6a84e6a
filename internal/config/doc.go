// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with TOML as the file format.
//
// Configuration is read from the file given with --config, else raincoat.toml in the
// project directory, else the [tool.raincoat] table of pyproject.toml. A .env file in
// the project directory is loaded first; RAINCOAT_* environment variables override file
// values and GITHUB_TOKEN is used when no token is configured.
package config
