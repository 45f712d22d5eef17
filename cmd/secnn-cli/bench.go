package main

import (
	"crypto/rand"
	"fmt"
	"net"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/spf13/cobra"

	"github.com/luxfi/secnn/pkg/acg"
	"github.com/luxfi/secnn/pkg/ahe"
	"github.com/luxfi/secnn/pkg/ahe/lattice"
	"github.com/luxfi/secnn/pkg/cds"
	"github.com/luxfi/secnn/pkg/field"
	"github.com/luxfi/secnn/pkg/fixedpoint"
	"github.com/luxfi/secnn/pkg/gc"
	"github.com/luxfi/secnn/pkg/inputauth"
	"github.com/luxfi/secnn/pkg/mpc/offline"
	"github.com/luxfi/secnn/pkg/mpc/online"
	"github.com/luxfi/secnn/pkg/share"
)

var (
	benchACGCmd = &cobra.Command{
		Use:   "acg",
		Short: "Benchmark one ACG correlation round (linear-layer offline preprocessing)",
		RunE:  runBenchACG,
	}
	benchGarblingCmd = &cobra.Command{
		Use:   "garbling",
		Short: "Benchmark garbling and evaluating one truncated-ReLU circuit",
		RunE:  runBenchGarbling,
	}
	benchTriplesCmd = &cobra.Command{
		Use:   "triples",
		Short: "Benchmark one batch of Beaver-triple generation",
		RunE:  runBenchTriples,
	}
	benchCDSCmd = &cobra.Command{
		Use:   "cds",
		Short: "Benchmark one conditional-disclosure-of-secrets round",
		RunE:  runBenchCDS,
	}
	benchInputAuthCmd = &cobra.Command{
		Use:   "input-auth",
		Short: "Benchmark one generic input-authentication round",
		RunE:  runBenchInputAuth,
	}
)

// ahePair is the key material a bench subcommand needs on both ends; since
// benchmarks measure a single primitive in isolation they skip pkg/keyexchange's
// wire round trip and construct the scheme locally instead.
type ahePair struct {
	enc       ahe.Encryptor
	dec       ahe.Decryptor
	eval      ahe.Evaluator
	alpha     field.Elem
	batchSize int
}

func setupAHE() (*ahePair, error) {
	scheme, err := lattice.New()
	if err != nil {
		return nil, err
	}
	kp, err := scheme.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	enc, err := scheme.NewEncryptor(kp.Public)
	if err != nil {
		return nil, err
	}
	dec, err := scheme.NewDecryptor(kp)
	if err != nil {
		return nil, err
	}
	eval, err := scheme.NewEvaluator(kp.Public)
	if err != nil {
		return nil, err
	}
	alpha, err := field.Random(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &ahePair{enc: enc, dec: dec, eval: eval, alpha: alpha, batchSize: scheme.BatchSize()}, nil
}

// report summarizes n latency samples (in milliseconds) with
// montanaflynn/stats, replacing the teacher's hand-rolled min/max/avg loop
// with mean/median/stddev/p95.
func report(name string, samples []float64) error {
	data := stats.Float64Data(samples)
	mean, err := data.Mean()
	if err != nil {
		return err
	}
	median, err := data.Median()
	if err != nil {
		return err
	}
	stddev, err := data.StandardDeviation()
	if err != nil {
		return err
	}
	p95, err := data.Percentile(95)
	if err != nil {
		return err
	}
	fmt.Printf("=== %s (%d iterations) ===\n", name, len(samples))
	fmt.Printf("  mean:   %.3fms\n", mean)
	fmt.Printf("  median: %.3fms\n", median)
	fmt.Printf("  stddev: %.3fms\n", stddev)
	fmt.Printf("  p95:    %.3fms\n", p95)
	return nil
}

func runBenchACG(cmd *cobra.Command, args []string) error {
	const cin, cout = 4, 4
	pair, err := setupAHE()
	if err != nil {
		return err
	}
	weight := make([]field.Elem, cin*cout)
	for i := range weight {
		weight[i] = field.FromInt64(int64(i % 3))
	}

	samples := make([]float64, iterations)
	for i := 0; i < iterations; i++ {
		clientConn, serverConn := net.Pipe()
		errCh := make(chan error, 1)
		go func() {
			_, _, err := acg.RunClient(clientConn, pair.enc, pair.dec, pair.batchSize, cin, cout, rand.Reader)
			clientConn.Close()
			errCh <- err
		}()

		start := time.Now()
		_, err := acg.RunServer(serverConn, pair.eval, pair.alpha, weight, pair.batchSize, cin, cout, rand.Reader)
		serverConn.Close()
		if err != nil {
			return fmt.Errorf("iteration %d: server: %w", i, err)
		}
		if err := <-errCh; err != nil {
			return fmt.Errorf("iteration %d: client: %w", i, err)
		}
		samples[i] = time.Since(start).Seconds() * 1000
	}
	return report("acg", samples)
}

func runBenchGarbling(cmd *cobra.Command, args []string) error {
	p := fixedpoint.Default
	bits := gc.FieldBits()
	truncBits := int(p.MantissaBits)

	serverBits := make([]bool, bits)
	rPrimeBits := make([]bool, bits)
	evalLabelBits := make([]bool, bits)

	samples := make([]float64, iterations)
	for i := 0; i < iterations; i++ {
		start := time.Now()
		circuit, err := gc.BuildTruncatedReLU(bits, truncBits, serverBits, rPrimeBits)
		if err != nil {
			return err
		}
		garbled, err := gc.Garble(circuit)
		if err != nil {
			return err
		}
		labels := make([]gc.Label, bits)
		for j, bit := range evalLabelBits {
			pair := garbled.EvaluatorInputPairs[j]
			if bit {
				labels[j] = pair[1]
			} else {
				labels[j] = pair[0]
			}
		}
		if _, err := gc.Evaluate(circuit, garbled, labels); err != nil {
			return err
		}
		samples[i] = time.Since(start).Seconds() * 1000
	}
	return report("garbling", samples)
}

func runBenchTriples(cmd *cobra.Command, args []string) error {
	const n = 64
	pair, err := setupAHE()
	if err != nil {
		return err
	}

	samples := make([]float64, iterations)
	for i := 0; i < iterations; i++ {
		clientConn, serverConn := net.Pipe()
		errCh := make(chan error, 1)
		go func() {
			_, err := offline.GenerateTriplesClient(clientConn, pair.enc, pair.dec, pair.alpha, n, pair.batchSize, rand.Reader)
			clientConn.Close()
			errCh <- err
		}()

		start := time.Now()
		_, err := offline.GenerateTriplesServer(serverConn, pair.eval, pair.alpha, n, pair.batchSize, rand.Reader)
		serverConn.Close()
		if err != nil {
			return fmt.Errorf("iteration %d: server: %w", i, err)
		}
		if err := <-errCh; err != nil {
			return fmt.Errorf("iteration %d: client: %w", i, err)
		}
		samples[i] = time.Since(start).Seconds() * 1000
	}
	return report("triples", samples)
}

func runBenchCDS(cmd *cobra.Command, args []string) error {
	const numBits = 16
	alpha, err := field.Random(rand.Reader)
	if err != nil {
		return err
	}

	samples := make([]float64, iterations)
	for i := 0; i < iterations; i++ {
		bits := make([]share.Auth, numBits)
		pairs := make([][2]gc.Label, numBits)
		for j := range bits {
			v := field.Zero
			if j%2 == 0 {
				v = field.One
			}
			bits[j] = share.Tag(alpha, v)
			pairs[j] = [2]gc.Label{{byte(j)}, {byte(j), 1}}
		}

		clientConn, serverConn := net.Pipe()
		clientSess := online.New(alpha, online.NewWireChannel(clientConn), rand.Reader)
		serverSess := online.New(alpha, online.NewWireChannel(serverConn), rand.Reader)

		errCh := make(chan error, 1)
		go func() {
			_, err := cds.RunClient(clientSess, bits)
			clientConn.Close()
			errCh <- err
		}()

		start := time.Now()
		err := cds.RunServer(serverSess, bits, pairs)
		serverConn.Close()
		if err != nil {
			return fmt.Errorf("iteration %d: server: %w", i, err)
		}
		if err := <-errCh; err != nil {
			return fmt.Errorf("iteration %d: client: %w", i, err)
		}
		samples[i] = time.Since(start).Seconds() * 1000
	}
	return report("cds", samples)
}

func runBenchInputAuth(cmd *cobra.Command, args []string) error {
	const numBits = 16
	pair, err := setupAHE()
	if err != nil {
		return err
	}
	value := field.FromInt64(7)

	samples := make([]float64, iterations)
	for i := 0; i < iterations; i++ {
		clientConn, serverConn := net.Pipe()
		errCh := make(chan error, 1)
		go func() {
			_, _, err := inputauth.GenericOwner(clientConn, pair.enc, pair.dec, pair.batchSize, value, numBits)
			clientConn.Close()
			errCh <- err
		}()

		start := time.Now()
		_, err := inputauth.GenericPeer(serverConn, pair.eval, pair.alpha, pair.batchSize, numBits, rand.Reader)
		serverConn.Close()
		if err != nil {
			return fmt.Errorf("iteration %d: peer: %w", i, err)
		}
		if err := <-errCh; err != nil {
			return fmt.Errorf("iteration %d: owner: %w", i, err)
		}
		samples[i] = time.Since(start).Seconds() * 1000
	}
	return report("input-auth", samples)
}
