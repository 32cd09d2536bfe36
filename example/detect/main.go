package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	percept "github.com/visionkit/go-percept"
	"github.com/visionkit/go-percept/backend/ort"
	"github.com/visionkit/go-percept/preprocess"
)

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	imgFile := flag.String("i", "../data/people.jpg", "Image file to run detection on")
	cfgFile := flag.String("c", "", "Optional yaml configuration file")
	labelFile := flag.String("labels", "", "Optional object label file, one label per line")
	ortLib := flag.String("l", "", "Path to the onnxruntime shared library")
	debug := flag.Bool("d", false, "Enable debug logging")

	flag.Parse()

	cfg := percept.DefaultConfig()

	if *cfgFile != "" {
		var err error
		cfg, err = percept.LoadConfigFile(*cfgFile)

		if err != nil {
			log.Fatal("Error loading configuration: ", err)
		}
	}

	if *labelFile != "" {
		labels, err := percept.LoadLabels(*labelFile)

		if err != nil {
			log.Fatal("Error loading object labels: ", err)
		}

		cfg.Object.Labels = labels
	}

	logger := zap.NewNop()

	if *debug || cfg.Debug {
		var err error
		logger, err = zap.NewDevelopment()

		if err != nil {
			log.Fatal("Error creating logger: ", err)
		}
	}

	// create the onnxruntime backend under the configured backend name
	backend, err := ort.NewBackend(cfg.Backend, *ortLib)

	if err != nil {
		log.Fatal("Error initializing onnxruntime backend: ", err)
	}

	defer backend.Close()

	detector := percept.New(cfg,
		percept.WithLogger(logger),
		percept.WithBackends(backend))

	defer detector.Close()

	// prime the backend and all enabled models before timing anything
	if _, err := detector.Warmup(); err != nil {
		log.Fatal("Error warming up detector: ", err)
	}

	// load image
	img := gocv.IMRead(*imgFile, gocv.IMReadColor)

	if img.Empty() {
		log.Fatal("Error reading image from: ", *imgFile)
	}

	defer img.Close()

	frame, err := preprocess.MatToImage(img)

	if err != nil {
		log.Fatal("Error converting image: ", err)
	}

	result, err := detector.Detect(frame)

	if err != nil {
		log.Fatal("Detection failed with error: ", err)
	}

	printResult(result)

	// draw object boxes back onto the source image
	for _, obj := range result.Object {
		text := fmt.Sprintf("%s %.1f%%", obj.Label, obj.Score*100)
		rect := image.Rect(obj.BoxPixels.Left, obj.BoxPixels.Top,
			obj.BoxPixels.Right, obj.BoxPixels.Bottom)

		gocv.Rectangle(&img, rect, color.RGBA{R: 0, G: 0, B: 255, A: 0}, 2)
		gocv.PutText(&img, text, image.Pt(obj.BoxPixels.Left, obj.BoxPixels.Top+12),
			gocv.FontHersheyPlain, 0.8, color.RGBA{R: 255, G: 255, B: 255, A: 0}, 1)
	}

	for _, face := range result.Face {
		rect := image.Rect(face.BoxPixels.Left, face.BoxPixels.Top,
			face.BoxPixels.Right, face.BoxPixels.Bottom)
		gocv.Rectangle(&img, rect, color.RGBA{R: 0, G: 255, B: 0, A: 0}, 2)
	}

	if ok := gocv.IMWrite("./detect-out.jpg", img); !ok {
		log.Println("Failed to save the image")
	}

	mean, median, p95 := detector.Stats().Summary()
	log.Printf("timing ms: mean=%.2f median=%.2f p95=%.2f\n", mean, median, p95)

	log.Println("done")
}

func printResult(result *percept.Result) {

	log.Printf("detection %s: %d faces, %d bodies, %d hands, %d objects\n",
		result.ID, len(result.Face), len(result.Body), len(result.Hand),
		len(result.Object))

	for _, face := range result.Face {
		log.Printf("  face %.1f%% age=%.0f gender=%s emotion=%s\n",
			face.Score*100, face.Age, face.Gender, face.Emotion)
	}

	for _, body := range result.Body {
		log.Printf("  body %.1f%% variant=%s keypoints=%d\n",
			body.Score*100, body.Variant, len(body.Keypoints))
	}

	for _, hand := range result.Hand {
		log.Printf("  hand %.1f%% keypoints=%d\n",
			hand.Score*100, len(hand.Keypoints))
	}

	for _, obj := range result.Object {
		log.Printf("  %s @ (%d %d %d %d) %.2f\n", obj.Label,
			obj.BoxPixels.Left, obj.BoxPixels.Top,
			obj.BoxPixels.Right, obj.BoxPixels.Bottom, obj.Score)
	}

	for _, g := range result.Gesture {
		log.Printf("  gesture %s[%d]: %s\n", g.Source, g.Index, g.Name)
	}
}
