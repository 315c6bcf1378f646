package config

import (
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"github.com/tie/launcher/pool"
)

// Default returns the configuration written by the init command.
func Default(distributionURL string) *Config {
	c := &Config{
		DistributionURL: distributionURL,
		Prune:           true,
		Parallelism: []ParallelismConfig{
			fromPool(PassFiles, pool.Files),
			fromPool(PassAssets, pool.Assets),
		},
	}
	c.applyDefaults()
	return c
}

func fromPool(pass string, p pool.Parallelism) ParallelismConfig {
	return ParallelismConfig{
		Pass:       pass,
		Multiplier: p.Multiplier,
		Floor:      p.Floor,
		Ceiling:    p.Ceiling,
	}
}

// Encode renders c as a formatted HCL document.
func Encode(c *Config) []byte {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	body.SetAttributeValue("distribution_url", cty.StringVal(c.DistributionURL))
	setString(body, "instances_dir", c.InstancesDir)
	setString(body, "cache_dir", c.CacheDir)
	setString(body, "java_path", c.JavaPath)
	setString(body, "access_token_file", c.AccessTokenFile)
	body.SetAttributeValue("prune", cty.BoolVal(c.Prune))
	body.SetAttributeValue("verify_existing", cty.BoolVal(c.VerifyExisting))
	setString(body, "metrics_file", c.MetricsFile)

	if r := c.Retry; r != nil {
		body.AppendNewline()
		b := body.AppendNewBlock("retry", nil).Body()
		b.SetAttributeValue("attempts", cty.NumberIntVal(int64(r.Attempts)))
		setString(b, "backoff", r.Backoff)
	}
	if h := c.HTTP; h != nil {
		body.AppendNewline()
		b := body.AppendNewBlock("http", nil).Body()
		setString(b, "connect_timeout", h.ConnectTimeout)
		setString(b, "request_timeout", h.RequestTimeout)
		b.SetAttributeValue("idle_per_host", cty.NumberIntVal(int64(h.IdlePerHost)))
	}
	for _, p := range c.Parallelism {
		body.AppendNewline()
		b := body.AppendNewBlock("parallelism", []string{p.Pass}).Body()
		b.SetAttributeValue("multiplier", cty.NumberIntVal(int64(p.Multiplier)))
		b.SetAttributeValue("floor", cty.NumberIntVal(int64(p.Floor)))
		b.SetAttributeValue("ceiling", cty.NumberIntVal(int64(p.Ceiling)))
	}
	if l := c.Log; l != nil {
		body.AppendNewline()
		b := body.AppendNewBlock("log", nil).Body()
		setString(b, "level", l.Level)
		setString(b, "format", l.Format)
	}
	return hclwrite.Format(f.Bytes())
}

func setString(b *hclwrite.Body, name, v string) {
	if v == "" {
		return
	}
	b.SetAttributeValue(name, cty.StringVal(v))
}
