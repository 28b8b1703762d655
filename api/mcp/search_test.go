package mcp

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/foliostoreco/folio/pkg/ingest"
	"github.com/foliostoreco/folio/pkg/registry"
	testutils "github.com/foliostoreco/folio/pkg/utils/test"
	"github.com/foliostoreco/folio/pkg/vector"
)

func TestMCP(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "MCP Suite")
}

var _ = Describe("Server", func() {
	var (
		server *Server
		index  *testutils.MockVectorDriver
		ctx    context.Context
	)

	BeforeEach(func() {
		logger := zap.NewNop()
		index = testutils.NewMockVectorDriver()
		embedder := testutils.NewMockEmbedder([]float32{0.1, 0.2})
		reg := registry.NewRegistry(logger)

		service, err := ingest.NewService(ingest.Config{
			Embedder: embedder,
			Index:    index,
			Registry: reg,
		}, logger)
		Expect(err).NotTo(HaveOccurred())

		server, err = NewServer(Config{
			Service: service,
			Logger:  logger,
		})
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	Describe("NewServer", func() {
		It("requires an ingest service unless noop", func() {
			_, err := NewServer(Config{Logger: zap.NewNop()})
			Expect(err).To(HaveOccurred())
		})

		It("builds an empty server in noop mode", func() {
			s, err := NewServer(Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(s).NotTo(BeNil())
		})
	})

	Describe("handleSearch", func() {
		It("reports the empty-index reason", func() {
			result, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "refund policy"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(output.Count).To(Equal(0))
			Expect(output.Reason).To(Equal(ingest.ReasonNoDocuments))
		})

		It("returns formatted hits", func() {
			Expect(index.Add(ctx, []vector.Chunk{{
				ID:   "doc-1_chunk_0",
				Text: "chunk text",
				Metadata: vector.Metadata{
					DocumentID:  "doc-1",
					TotalChunks: 3,
					Filename:    "guide.pdf",
				},
			}})).To(Succeed())
			index.SearchResults = []vector.ScoredChunk{
				{
					Chunk: vector.Chunk{
						ID:   "doc-1_chunk_0",
						Text: "chunk text",
						Metadata: vector.Metadata{
							DocumentID:  "doc-1",
							ChunkIndex:  0,
							TotalChunks: 3,
							Filename:    "guide.pdf",
						},
					},
					Score: 0.88,
				},
			}

			result, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "how do refunds work"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(output.Count).To(Equal(1))
			Expect(output.Results[0].Title).To(Equal("guide.pdf"))
			Expect(output.Results[0].Source).To(Equal("Part 1 of 3"))
			Expect(output.Results[0].DocumentID).To(Equal("doc-1"))
		})
	})
})
