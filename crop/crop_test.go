package crop_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/airbusgeo/ardcube/aoi"
	"github.com/airbusgeo/ardcube/common"
	"github.com/airbusgeo/ardcube/crop"
	"github.com/airbusgeo/ardcube/service"
	"github.com/airbusgeo/godal"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Cropper", func() {
	var (
		ctx     = context.Background()
		dir     string
		outDir  string
		clip    *aoi.ClipFeatures
		cropper = crop.NewCropper()
		err     error
	)

	BeforeEach(func() {
		dir, err = os.MkdirTemp("", "crop")
		Expect(err).NotTo(HaveOccurred())
		outDir = filepath.Join(dir, "out")
		clip, err = aoi.NewClipFeatures(testCRS(), testAOI)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	Context("raster overlapping the AOI", func() {
		var outcome crop.Outcome
		nodata := -9999.

		BeforeEach(func() {
			src := filepath.Join(dir, "tileA", "S1A__IW___A_20210101T053000_VV.tif")
			createRaster(src, 500000, 4600000, 3, &nodata)
			outcome = cropper.Crop(ctx, src, clip, outDir)
		})

		It("should be cropped to the AOI window", func() {
			Expect(outcome.Status).To(Equal(common.CropSuccess))
			Expect(outcome.Output).To(Equal(filepath.Join(outDir, "S1A__IW___A_20210101T053000_VV.tif")))

			ds, err := godal.Open(outcome.Output)
			Expect(err).NotTo(HaveOccurred())
			defer ds.Close()
			st := ds.Structure()
			Expect(st.SizeX).To(Equal(6))
			Expect(st.SizeY).To(Equal(6))
			Expect(st.NBands).To(Equal(1))
			Expect(st.DataType).To(Equal(godal.Float32))
			gt, err := ds.GeoTransform()
			Expect(err).NotTo(HaveOccurred())
			Expect(gt).To(Equal([6]float64{500020, 10, 0, 4599980, 0, -10}))
			nd, ok := ds.Bands()[0].NoData()
			Expect(ok).To(BeTrue())
			Expect(nd).To(Equal(nodata))
		})

		It("should keep the same window when cropped again", func() {
			again := cropper.Crop(ctx, outcome.Output, clip, filepath.Join(dir, "again"))
			Expect(again.Status).To(Equal(common.CropSuccess))
			ds, err := godal.Open(again.Output)
			Expect(err).NotTo(HaveOccurred())
			defer ds.Close()
			Expect(ds.Structure().SizeX).To(Equal(6))
			Expect(ds.Structure().SizeY).To(Equal(6))
			gt, _ := ds.GeoTransform()
			Expect(gt[0]).To(Equal(500020.))
			Expect(gt[3]).To(Equal(4599980.))
		})
	})

	Context("raster with data on a part of the AOI only", func() {
		var outcome crop.Outcome
		nodata := -9999.

		BeforeEach(func() {
			clip, err = aoi.NewClipFeatures(testCRS(), notchedAOI)
			Expect(err).NotTo(HaveOccurred())
			src := filepath.Join(dir, "tileA", "partial.tif")
			// nodata in columns 0-3, 3 elsewhere
			fillRaster(src, 500000, 4600000, &nodata, func(col, row int) float64 {
				if col < 4 {
					return nodata
				}
				return 3
			})
			outcome = cropper.Crop(ctx, src, clip, outDir)
		})

		It("should be trimmed to the data window, with nodata outside the mask", func() {
			Expect(outcome.Status).To(Equal(common.CropSuccess))
			width, height, gt, pixels := readRaster(outcome.Output)
			Expect(width).To(Equal(4))
			Expect(height).To(Equal(6))
			Expect(gt).To(Equal([6]float64{500040, 10, 0, 4599980, 0, -10}))
			for row := 0; row < height; row++ {
				for col := 0; col < width; col++ {
					expected := float32(3)
					if row < 2 && col >= 2 {
						expected = float32(nodata)
					}
					Expect(pixels[row*width+col]).To(Equal(expected), "pixel %d,%d", col, row)
				}
			}
		})

		It("should keep the same window when cropped again", func() {
			again := cropper.Crop(ctx, outcome.Output, clip, filepath.Join(dir, "again"))
			Expect(again.Status).To(Equal(common.CropSuccess))
			width, height, gt, _ := readRaster(again.Output)
			Expect(width).To(Equal(4))
			Expect(height).To(Equal(6))
			Expect(gt[0]).To(Equal(500040.))
			Expect(gt[3]).To(Equal(4599980.))
		})
	})

	It("should skip a raster outside the AOI", func() {
		src := filepath.Join(dir, "tileC", "c.tif")
		createRaster(src, 600000, 4600000, 3, nil)
		outcome := cropper.Crop(ctx, src, clip, outDir)
		Expect(outcome.Status).To(Equal(common.CropSkippedNoOverlap))
		Expect(outcome.String()).To(Equal("SkippedNoOverlap"))
		_, err := os.Stat(filepath.Join(outDir, "c.tif"))
		Expect(os.IsNotExist(err)).To(BeTrue())
	})

	It("should skip a raster without data inside the AOI", func() {
		nodata := -9999.
		src := filepath.Join(dir, "tileA", "a.tif")
		createRaster(src, 500000, 4600000, nodata, &nodata)
		outcome := cropper.Crop(ctx, src, clip, outDir)
		Expect(outcome.Status).To(Equal(common.CropSkippedAllNoData))
		_, err := os.Stat(filepath.Join(outDir, "a.tif"))
		Expect(os.IsNotExist(err)).To(BeTrue())
	})

	It("should use 0 as nodata when none is declared", func() {
		src := filepath.Join(dir, "tileA", "zero.tif")
		createRaster(src, 500000, 4600000, 0, nil)
		Expect(cropper.Crop(ctx, src, clip, outDir).Status).To(Equal(common.CropSkippedAllNoData))
	})

	It("should fail on a missing file", func() {
		outcome := cropper.Crop(ctx, filepath.Join(dir, "missing.tif"), clip, outDir)
		Expect(outcome.Status).To(Equal(common.CropFailed))
		Expect(outcome.Reason).NotTo(BeEmpty())
		Expect(outcome.String()).To(HavePrefix("failed: "))
	})
})

var _ = Describe("CropBatch", func() {
	var (
		ctx      = context.Background()
		dir      string
		job      common.CropJob
		resolver = staticResolver{wkts: []string{testAOI}}
		now      = time.Date(2021, 6, 15, 10, 30, 0, 0, time.UTC)
		err      error
	)

	BeforeEach(func() {
		dir, err = os.MkdirTemp("", "cropbatch")
		Expect(err).NotTo(HaveOccurred())
		job = common.CropJob{
			SourceDir:   filepath.Join(dir, "src"),
			DestDir:     filepath.Join(dir, "dst"),
			LogDir:      filepath.Join(dir, "log"),
			Extension:   ".tif",
			WorkerCount: 4,
		}
		createRaster(filepath.Join(job.SourceDir, "tileA", "a.tif"), 500000, 4600000, 1, nil)
		createRaster(filepath.Join(job.SourceDir, "tileB", "b.tif"), 500050, 4600000, 1, nil)
		createRaster(filepath.Join(job.SourceDir, "tileC", "c.tif"), 600000, 4600000, 1, nil)
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	runBatch := func(confirmer service.Confirmer) ([]crop.Result, error) {
		b := crop.NewBatch(confirmer)
		b.Now = func() time.Time { return now }
		return b.Run(ctx, job, resolver)
	}

	It("should crop the rasters overlapping the AOI", func() {
		results, err := runBatch(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(3))

		byName := map[string]common.CropStatus{}
		for _, r := range results {
			byName[filepath.Base(r.Source)] = r.Outcome.Status
		}
		Expect(byName).To(Equal(map[string]common.CropStatus{
			"a.tif": common.CropSuccess,
			"b.tif": common.CropSuccess,
			"c.tif": common.CropSkippedNoOverlap,
		}))

		Expect(filepath.Join(job.DestDir, "tileA", "a.tif")).To(BeARegularFile())
		Expect(filepath.Join(job.DestDir, "tileB", "b.tif")).To(BeARegularFile())
		files, err := crop.Discover(job.DestDir, ".tif")
		Expect(err).NotTo(HaveOccurred())
		Expect(files).To(HaveLen(2))

		logFile := filepath.Join(job.LogDir, "20210615T103000__crop.log")
		content, err := os.ReadFile(logFile)
		Expect(err).NotTo(HaveOccurred())
		lines := strings.Split(strings.TrimSpace(string(content)), "\n")
		Expect(lines).To(ConsistOf(
			filepath.Join(job.SourceDir, "tileA", "a.tif")+" - success",
			filepath.Join(job.SourceDir, "tileB", "b.tif")+" - success",
			filepath.Join(job.SourceDir, "tileC", "c.tif")+" - SkippedNoOverlap",
		))

		// Sources are kept
		Expect(filepath.Join(job.SourceDir, "tileA", "a.tif")).To(BeARegularFile())
	})

	It("should remove the cropped sources in clean mode", func() {
		job.Clean = true
		_, err := runBatch(service.AlwaysYes)
		Expect(err).NotTo(HaveOccurred())
		Expect(filepath.Join(job.SourceDir, "tileA")).NotTo(BeADirectory())
		Expect(filepath.Join(job.SourceDir, "tileB")).NotTo(BeADirectory())
		Expect(filepath.Join(job.SourceDir, "tileC", "c.tif")).To(BeARegularFile())
	})

	It("should only remove the directories emptied by the clean mode", func() {
		job.Clean = true
		empty := filepath.Join(job.SourceDir, "empty")
		Expect(os.MkdirAll(empty, 0755)).To(Succeed())
		_, err := runBatch(service.AlwaysYes)
		Expect(err).NotTo(HaveOccurred())
		Expect(empty).To(BeADirectory())
		Expect(filepath.Join(job.SourceDir, "tileA")).NotTo(BeADirectory())
	})

	It("should remove the emptied source directory", func() {
		job.Clean = true
		Expect(os.RemoveAll(filepath.Join(job.SourceDir, "tileC"))).To(Succeed())
		_, err := runBatch(service.AlwaysYes)
		Expect(err).NotTo(HaveOccurred())
		Expect(job.SourceDir).NotTo(BeADirectory())
	})

	It("should refuse to crop into the source directory", func() {
		job.Clean = true
		job.DestDir = filepath.Join(dir, "src", "tileA", "..")
		results, err := runBatch(service.AlwaysYes)
		Expect(err).To(MatchError(service.ErrSameDirectory))
		Expect(service.Fatal(err)).To(BeTrue())
		Expect(results).To(BeEmpty())
		Expect(filepath.Join(job.SourceDir, "tileA", "a.tif")).To(BeARegularFile())
		Expect(filepath.Join(job.SourceDir, "tileB", "b.tif")).To(BeARegularFile())
	})

	It("should report a corrupted file as failed without stopping the batch", func() {
		Expect(os.WriteFile(filepath.Join(job.SourceDir, "tileB", "corrupted.tif"), []byte("not a tiff"), 0644)).To(Succeed())
		results, err := runBatch(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(4))
		for _, r := range results {
			if filepath.Base(r.Source) == "corrupted.tif" {
				Expect(r.Outcome.Status).To(Equal(common.CropFailed))
			} else {
				Expect(r.Outcome.Status).NotTo(Equal(common.CropFailed))
			}
		}
	})

	It("should not run when the user declines", func() {
		results, err := runBatch(service.AlwaysNo)
		Expect(err).To(MatchError(crop.ErrCancelled))
		Expect(results).To(BeEmpty())
		Expect(job.DestDir).NotTo(BeADirectory())
	})
})
