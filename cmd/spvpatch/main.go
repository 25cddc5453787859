// Command spvpatch applies patch passes to a SPIR-V module and reports its
// reflection.
//
// Usage:
//
//	spvpatch [options] <input.spv>
//
// Examples:
//
//	spvpatch -pass clip-rotation -angle 90 -o out.spv in.spv
//	spvpatch -pass unused-locations -consumer frag.spv -o out.spv vert.spv
//	spvpatch -reflect shader.spv
//	spvpatch -pass color-clamp -cache shader.spvc -codec xz shader.spv
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/docker/go-units"
	"go.uber.org/zap"

	"github.com/gogpu/spvkit"
	"github.com/gogpu/spvkit/patch"
	"github.com/gogpu/spvkit/reflection"
	"github.com/gogpu/spvkit/shadercache"
	"github.com/gogpu/spvkit/spirv"
)

var (
	passes   = flag.String("pass", "", "comma-separated passes: color-clamp, unused-locations, clip-rotation, invert-ordinate")
	angle    = flag.Float64("angle", 90, "clip-space rotation in degrees")
	consumer = flag.String("consumer", "", "fragment module read by unused-locations")
	reflect  = flag.Bool("reflect", false, "print shader resources")
	cache    = flag.String("cache", "", "write a shader cache container to this file")
	codec    = flag.String("codec", "lz4", "cache codec: none, lz4, xz")
	output   = flag.String("o", "", "write the patched module to this file")
	verbose  = flag.Bool("v", false, "verbose logging")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: no input file specified")
		usage()
		os.Exit(1)
	}
	if err := run(flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	if *verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func run(inputPath string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	opts := spvkit.LoadOptions{
		Logger:  log,
		Config:  patch.Config{AngleDegrees: float32(*angle)},
		Reflect: *reflect || *cache != "",
	}
	for _, name := range strings.Split(*passes, ",") {
		if name = strings.TrimSpace(name); name == "" {
			continue
		}
		kind, err := patch.ParseKind(name)
		if err != nil {
			return err
		}
		opts.Passes = append(opts.Passes, kind)
	}
	if *consumer != "" {
		data, err := os.ReadFile(*consumer)
		if err != nil {
			return err
		}
		if opts.Config.Consumer, err = spirv.Parse(data); err != nil {
			return fmt.Errorf("%s: %w", *consumer, err)
		}
	}

	source, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	shader, err := spvkit.NewLoader(opts).Load(source)
	if err != nil {
		return fmt.Errorf("%s: %w", inputPath, err)
	}

	patched := shader.Bytecode()
	fmt.Fprintf(os.Stderr, "%s: %s stage, %s -> %s, applied %v, skipped %v\n",
		inputPath, shader.Stage,
		units.HumanSize(float64(len(source))), units.HumanSize(float64(len(patched))),
		shader.Applied, shader.Skipped)

	if *output != "" {
		if err := os.WriteFile(*output, patched, 0644); err != nil {
			return err
		}
	}
	if *reflect {
		printResources(shader.Resources)
	}
	if *cache != "" {
		return writeCache(shader)
	}
	return nil
}

func writeCache(shader *spvkit.Shader) error {
	c, err := shadercache.ParseCodec(*codec)
	if err != nil {
		return err
	}
	entry, err := shader.CacheEntry()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := shadercache.Encode(&buf, entry, shadercache.Options{Codec: c}); err != nil {
		return err
	}
	if err := os.WriteFile(*cache, buf.Bytes(), 0644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%s: %s container, %s\n", *cache, c, units.HumanSize(float64(buf.Len())))
	return nil
}

func printResources(res *reflection.Resources) {
	for _, a := range res.Inputs {
		fmt.Printf("input     location=%d %s %q\n", a.Location, a.Format, a.Name)
	}
	for _, a := range res.Outputs {
		fmt.Printf("output    location=%d %s %q\n", a.Location, a.Format, a.Name)
	}
	for _, b := range res.UniformBuffers {
		fmt.Printf("uniform   set=%d binding=%d array=%d size=%d %q\n", b.Set, b.Binding, b.Array, b.Size, b.Name)
		for _, u := range b.Uniforms {
			fmt.Printf("            offset=%d size=%d array=%d %s %q\n", u.Offset, u.Size, u.Array, u.Type, u.Name)
		}
	}
	for _, img := range res.SampledImages {
		fmt.Printf("sampled   set=%d binding=%d %s array=%d depth=%t ms=%t %q\n",
			img.Set, img.Binding, img.Target, img.Array, img.Depth, img.Multisampled, img.Name)
	}
	for _, img := range res.Images {
		fmt.Printf("image     set=%d binding=%d %s array=%d depth=%t ms=%t %q\n",
			img.Set, img.Binding, img.Target, img.Array, img.Depth, img.Multisampled, img.Name)
	}
	for _, s := range res.Samplers {
		fmt.Printf("sampler   set=%d binding=%d %q\n", s.Set, s.Binding, s.Name)
	}
	for _, img := range res.StorageImages {
		fmt.Printf("storage   set=%d binding=%d %s array=%d %s readonly=%t %q\n",
			img.Set, img.Binding, img.Target, img.Array, img.Format, img.ReadOnly, img.Name)
	}
	for _, b := range res.StorageBuffers {
		fmt.Printf("buffer    set=%d binding=%d array=%d stride=%d readonly=%t %q\n",
			b.Set, b.Binding, b.Array, b.Stride, b.ReadOnly, b.Name)
	}
	for _, pc := range res.PushConstants {
		fmt.Printf("push      offset=%d size=%d %q\n", pc.Offset, pc.Size, pc.Name)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: spvpatch [options] <input.spv>\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  spvpatch -pass clip-rotation -angle 90 -o out.spv in.spv\n")
	fmt.Fprintf(os.Stderr, "  spvpatch -pass unused-locations -consumer frag.spv -o out.spv vert.spv\n")
	fmt.Fprintf(os.Stderr, "  spvpatch -reflect shader.spv\n")
}
