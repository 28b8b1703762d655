package config_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/foliostoreco/folio/pkg/config"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

var _ = Describe("Configer config", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).NotTo(BeNil())

			defaults := config.NewDefaultConfig()
			Expect(cfg.Version).To(Equal(defaults.Version))
			Expect(cfg.Storage.IndexFile).To(Equal(defaults.Storage.IndexFile))
			Expect(cfg.API.Listen).To(Equal(defaults.API.Listen))
			Expect(cfg.Embedding.Provider).To(Equal(defaults.Embedding.Provider))
			Expect(cfg.Embedding.Model).To(Equal(defaults.Embedding.Model))
			Expect(cfg.Embedding.Dimensions).To(Equal(defaults.Embedding.Dimensions))
			Expect(cfg.ObjectStore.Provider).To(Equal(defaults.ObjectStore.Provider))
			Expect(cfg.ObjectStore.Prefix).To(Equal(defaults.ObjectStore.Prefix))
			Expect(cfg.Backup.Interval).To(Equal(defaults.Backup.Interval))
			Expect(cfg.Backup.MaxHistory).To(Equal(defaults.Backup.MaxHistory))
			Expect(cfg.Ingest.MaxChunkWords).To(Equal(defaults.Ingest.MaxChunkWords))
		})

		It("loads a valid config file", func() {
			data := `version = 0

[api]
listen = ":9090"

[embedding]
dimensions = 768

[object_store]
provider = "s3"
bucket = "folio-corpus"
`
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).NotTo(BeNil())
			Expect(cfg.API.Listen).To(Equal(":9090"))
			Expect(cfg.Embedding.Dimensions).To(Equal(uint(768)))
			Expect(cfg.ObjectStore.Provider).To(Equal("s3"))
			Expect(cfg.ObjectStore.Bucket).To(Equal("folio-corpus"))

			// Unset fields are filled from defaults.
			defaults := config.NewDefaultConfig()
			Expect(cfg.Embedding.Model).To(Equal(defaults.Embedding.Model))
			Expect(cfg.Backup.Interval).To(Equal(defaults.Backup.Interval))
		})

		It("errors on malformed TOML", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("not [valid"), 0o600)
			Expect(err).NotTo(HaveOccurred())

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.LoadConfig()
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("SaveConfig and SetConfigValue", func() {
		It("round-trips a config through save and load", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.ObjectStore.Bucket = "corpus-backups"
			Expect(c.SaveConfig(cfg)).To(Succeed())

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.ObjectStore.Bucket).To(Equal("corpus-backups"))
		})

		It("sets a string value by dotted key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.SetConfigValue("api.listen", ":7070")).To(Succeed())

			got, err := c.GetConfigValue("api.listen")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(":7070"))
		})

		It("sets numeric values with validation", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.SetConfigValue("embedding.dimensions", "768")).To(Succeed())
			Expect(c.SetConfigValue("embedding.dimensions", "lots")).To(HaveOccurred())
			Expect(c.SetConfigValue("backup.max_history", "-3")).To(HaveOccurred())
		})

		It("rejects unknown keys", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(c.SetConfigValue("nope.nothing", "x")).To(HaveOccurred())
			_, err = c.GetConfigValue("nope.nothing")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ValidConfigKeys", func() {
		It("contains every supported key exactly once", func() {
			keys := config.ValidConfigKeys()
			seen := map[string]int{}
			for _, k := range keys {
				seen[k]++
				Expect(config.IsValidConfigKey(k)).To(BeTrue())
			}
			for k, n := range seen {
				Expect(n).To(Equal(1), "duplicate key %s", k)
			}
			Expect(keys).To(ContainElement("object_store.bucket"))
			Expect(keys).To(ContainElement("ingest.max_upload_mb"))
		})
	})

	Describe("InitViper", func() {
		It("applies defaults when no file exists", func() {
			v, err := config.InitViper(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.ConfigFromViper(v)
			defaults := config.NewDefaultConfig()
			Expect(cfg.API.Listen).To(Equal(defaults.API.Listen))
			Expect(cfg.Embedding.Dimensions).To(Equal(defaults.Embedding.Dimensions))
		})

		It("reads values from config.toml", func() {
			data := "[api]\nlisten = \":6060\"\n"
			err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)
			Expect(err).NotTo(HaveOccurred())

			v, err := config.InitViper(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.ConfigFromViper(v)
			Expect(cfg.API.Listen).To(Equal(":6060"))
		})

		It("lets environment variables override the file", func() {
			os.Setenv("FOLIO_API_LISTEN", ":5050")
			DeferCleanup(func() { os.Unsetenv("FOLIO_API_LISTEN") })

			v, err := config.InitViper(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.ConfigFromViper(v)
			Expect(cfg.API.Listen).To(Equal(":5050"))
		})
	})
})
