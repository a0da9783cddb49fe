package ml

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Hidden layer widths are fixed; only the input and output widths follow
// the vocabulary and category index of the training corpus.
const (
	hidden1Units = 64
	hidden2Units = 32
)

// Adam optimizer constants.
const (
	adamBeta1 = 0.9
	adamBeta2 = 0.999
	adamEps   = 1e-8
)

// TrainingConfig holds the hyperparameters for a training run. The values
// are fixed by policy; only Seed varies between runs.
type TrainingConfig struct {
	Epochs          int
	BatchSize       int
	ValidationSplit float64
	LearningRate    float64
	MinExamples     int
	Seed            int64
}

// DefaultTrainingConfig returns the standard hyperparameters.
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Epochs:          50,
		BatchSize:       32,
		ValidationSplit: 0.2,
		LearningRate:    0.001,
		MinExamples:     20,
		Seed:            time.Now().UnixNano(),
	}
}

// denseLayer is one fully connected layer with its Adam state.
type denseLayer struct {
	w *mat.Dense    // out×in weights
	b *mat.VecDense // out biases

	// Adam first and second moment estimates, same shapes as w and b.
	mw, vw *mat.Dense
	mb, vb *mat.VecDense
}

func newDenseLayer(out, in int, rng *rand.Rand) *denseLayer {
	// Glorot uniform initialization.
	limit := math.Sqrt(6.0 / float64(in+out))
	data := make([]float64, out*in)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * limit
	}
	return &denseLayer{
		w:  mat.NewDense(out, in, data),
		b:  mat.NewVecDense(out, nil),
		mw: mat.NewDense(out, in, nil),
		vw: mat.NewDense(out, in, nil),
		mb: mat.NewVecDense(out, nil),
		vb: mat.NewVecDense(out, nil),
	}
}

// apply computes w·x + b into a fresh vector.
func (l *denseLayer) apply(x *mat.VecDense) *mat.VecDense {
	out, _ := l.w.Dims()
	y := mat.NewVecDense(out, nil)
	y.MulVec(l.w, x)
	y.AddVec(y, l.b)
	return y
}

// Network is a small feed-forward classifier: input → 64 ReLU → 32 ReLU →
// softmax over the category slots. Inference is deterministic for fixed
// weights.
type Network struct {
	inputs  int
	outputs int
	l1      *denseLayer
	l2      *denseLayer
	l3      *denseLayer
}

// NewNetwork creates an untrained network with Glorot-initialized weights.
func NewNetwork(inputs, outputs int, rng *rand.Rand) *Network {
	return &Network{
		inputs:  inputs,
		outputs: outputs,
		l1:      newDenseLayer(hidden1Units, inputs, rng),
		l2:      newDenseLayer(hidden2Units, hidden1Units, rng),
		l3:      newDenseLayer(outputs, hidden2Units, rng),
	}
}

// Inputs returns the expected feature vector length.
func (n *Network) Inputs() int { return n.inputs }

// Outputs returns the output layer width.
func (n *Network) Outputs() int { return n.outputs }

// forward runs one sample through the network and returns the two hidden
// activations and the softmax probabilities.
func (n *Network) forward(x *mat.VecDense) (a1, a2, probs *mat.VecDense) {
	a1 = n.l1.apply(x)
	reluInPlace(a1)
	a2 = n.l2.apply(a1)
	reluInPlace(a2)
	probs = n.l3.apply(a2)
	softmaxInPlace(probs)
	return a1, a2, probs
}

// Predict runs inference on a feature vector and returns the argmax output
// slot together with its probability.
func (n *Network) Predict(features []float64) (slot int, confidence float64, err error) {
	if len(features) != n.inputs {
		return 0, 0, fmt.Errorf("%w: got %d features, network expects %d",
			ErrDimensionMismatch, len(features), n.inputs)
	}
	_, _, probs := n.forward(mat.NewVecDense(len(features), features))
	best := 0
	for i := 1; i < probs.Len(); i++ {
		if probs.AtVec(i) > probs.AtVec(best) {
			best = i
		}
	}
	return best, probs.AtVec(best), nil
}

// TrainNetwork fits a fresh network on the corpus using mini-batch Adam and
// categorical cross-entropy. Training is refused below cfg.MinExamples.
func TrainNetwork(examples []Example, vocab Vocabulary, cats CategoryIndex, cfg TrainingConfig) (*Network, error) {
	if len(examples) < cfg.MinExamples {
		return nil, fmt.Errorf("%w: have %d examples, need %d",
			ErrInsufficientData, len(examples), cfg.MinExamples)
	}
	if len(cats) == 0 {
		return nil, fmt.Errorf("%w: corpus has no categories", ErrInsufficientData)
	}

	xs := make([]*mat.VecDense, 0, len(examples))
	targets := make([]int, 0, len(examples))
	for _, ex := range examples {
		slot, ok := cats[ex.CategoryID]
		if !ok {
			continue
		}
		vec := Vectorize(Normalize(ex.Description), ex.AmountCents, vocab)
		xs = append(xs, mat.NewVecDense(len(vec), vec))
		targets = append(targets, slot)
	}
	if len(xs) < cfg.MinExamples {
		return nil, fmt.Errorf("%w: have %d usable examples, need %d",
			ErrInsufficientData, len(xs), cfg.MinExamples)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	net := NewNetwork(len(vocab)+1, len(cats), rng)

	// Train/validation split over a shuffled copy of the corpus.
	order := rng.Perm(len(xs))
	valN := int(float64(len(xs)) * cfg.ValidationSplit)
	trainIdx := order[:len(xs)-valN]
	valIdx := order[len(xs)-valN:]

	grads := newGradients(net)
	step := 0
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		rng.Shuffle(len(trainIdx), func(i, j int) {
			trainIdx[i], trainIdx[j] = trainIdx[j], trainIdx[i]
		})

		epochLoss := 0.0
		for start := 0; start < len(trainIdx); start += cfg.BatchSize {
			end := start + cfg.BatchSize
			if end > len(trainIdx) {
				end = len(trainIdx)
			}
			batch := trainIdx[start:end]

			grads.zero()
			for _, i := range batch {
				epochLoss += net.backward(xs[i], targets[i], grads)
			}
			step++
			net.adamStep(grads, len(batch), step, cfg.LearningRate)
		}

		epochLoss /= float64(len(trainIdx))
		if math.IsNaN(epochLoss) || math.IsInf(epochLoss, 0) {
			return nil, fmt.Errorf("training diverged at epoch %d (loss=%v)", epoch, epochLoss)
		}
		if (epoch+1)%10 == 0 {
			slog.Debug("training epoch completed",
				"epoch", epoch+1,
				"loss", epochLoss,
				"validation_accuracy", net.accuracy(xs, targets, valIdx))
		}
	}

	slog.Debug("training finished",
		"examples", len(xs),
		"vocabulary", len(vocab),
		"categories", len(cats),
		"validation_accuracy", net.accuracy(xs, targets, valIdx))
	return net, nil
}

// gradients accumulates per-batch parameter gradients.
type gradients struct {
	gw1, gw2, gw3 *mat.Dense
	gb1, gb2, gb3 *mat.VecDense
}

func newGradients(n *Network) *gradients {
	return &gradients{
		gw1: mat.NewDense(hidden1Units, n.inputs, nil),
		gw2: mat.NewDense(hidden2Units, hidden1Units, nil),
		gw3: mat.NewDense(n.outputs, hidden2Units, nil),
		gb1: mat.NewVecDense(hidden1Units, nil),
		gb2: mat.NewVecDense(hidden2Units, nil),
		gb3: mat.NewVecDense(n.outputs, nil),
	}
}

func (g *gradients) zero() {
	g.gw1.Zero()
	g.gw2.Zero()
	g.gw3.Zero()
	g.gb1.Zero()
	g.gb2.Zero()
	g.gb3.Zero()
}

// backward runs one sample forward, accumulates its gradients and returns
// its cross-entropy loss.
func (n *Network) backward(x *mat.VecDense, target int, g *gradients) float64 {
	a1, a2, probs := n.forward(x)
	loss := -math.Log(probs.AtVec(target) + 1e-12)

	// Softmax + cross-entropy: delta3 = probs - onehot(target).
	delta3 := mat.NewVecDense(probs.Len(), nil)
	delta3.CopyVec(probs)
	delta3.SetVec(target, delta3.AtVec(target)-1)

	addOuter(g.gw3, delta3, a2)
	g.gb3.AddVec(g.gb3, delta3)

	delta2 := backpropDelta(n.l3.w, delta3, a2)
	addOuter(g.gw2, delta2, a1)
	g.gb2.AddVec(g.gb2, delta2)

	delta1 := backpropDelta(n.l2.w, delta2, a1)
	addOuter(g.gw1, delta1, x)
	g.gb1.AddVec(g.gb1, delta1)

	return loss
}

// backpropDelta computes wᵀ·delta masked by the ReLU derivative of the
// layer's activation.
func backpropDelta(w *mat.Dense, delta, activation *mat.VecDense) *mat.VecDense {
	_, in := w.Dims()
	out := mat.NewVecDense(in, nil)
	out.MulVec(w.T(), delta)
	for i := 0; i < out.Len(); i++ {
		if activation.AtVec(i) <= 0 {
			out.SetVec(i, 0)
		}
	}
	return out
}

func (n *Network) adamStep(g *gradients, batchSize, step int, lr float64) {
	scale := 1.0 / float64(batchSize)
	adamUpdate(rawDense(n.l1.w), rawDense(g.gw1), rawDense(n.l1.mw), rawDense(n.l1.vw), scale, step, lr)
	adamUpdate(rawVec(n.l1.b), rawVec(g.gb1), rawVec(n.l1.mb), rawVec(n.l1.vb), scale, step, lr)
	adamUpdate(rawDense(n.l2.w), rawDense(g.gw2), rawDense(n.l2.mw), rawDense(n.l2.vw), scale, step, lr)
	adamUpdate(rawVec(n.l2.b), rawVec(g.gb2), rawVec(n.l2.mb), rawVec(n.l2.vb), scale, step, lr)
	adamUpdate(rawDense(n.l3.w), rawDense(g.gw3), rawDense(n.l3.mw), rawDense(n.l3.vw), scale, step, lr)
	adamUpdate(rawVec(n.l3.b), rawVec(g.gb3), rawVec(n.l3.mb), rawVec(n.l3.vb), scale, step, lr)
}

// adamUpdate applies one bias-corrected Adam step over raw parameter data.
func adamUpdate(param, grad, m, v []float64, gradScale float64, step int, lr float64) {
	c1 := 1 - math.Pow(adamBeta1, float64(step))
	c2 := 1 - math.Pow(adamBeta2, float64(step))
	for i := range param {
		g := grad[i] * gradScale
		m[i] = adamBeta1*m[i] + (1-adamBeta1)*g
		v[i] = adamBeta2*v[i] + (1-adamBeta2)*g*g
		mHat := m[i] / c1
		vHat := v[i] / c2
		param[i] -= lr * mHat / (math.Sqrt(vHat) + adamEps)
	}
}

// accuracy evaluates argmax accuracy over the given sample indexes.
func (n *Network) accuracy(xs []*mat.VecDense, targets []int, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	correct := 0
	for _, i := range idx {
		slot, _, err := n.Predict(rawVec(xs[i]))
		if err == nil && slot == targets[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(idx))
}

func reluInPlace(v *mat.VecDense) {
	data := v.RawVector().Data
	for i, x := range data {
		if x < 0 {
			data[i] = 0
		}
	}
}

// softmaxInPlace applies a numerically stable softmax.
func softmaxInPlace(v *mat.VecDense) {
	data := v.RawVector().Data
	max := data[0]
	for _, x := range data[1:] {
		if x > max {
			max = x
		}
	}
	sum := 0.0
	for i, x := range data {
		e := math.Exp(x - max)
		data[i] = e
		sum += e
	}
	for i := range data {
		data[i] /= sum
	}
}

// addOuter accumulates the outer product a·bᵀ into dst.
func addOuter(dst *mat.Dense, a, b *mat.VecDense) {
	rows, cols := dst.Dims()
	data := dst.RawMatrix().Data
	for i := 0; i < rows; i++ {
		ai := a.AtVec(i)
		if ai == 0 {
			continue
		}
		row := data[i*cols : (i+1)*cols]
		for j := 0; j < cols; j++ {
			row[j] += ai * b.AtVec(j)
		}
	}
}

func rawDense(m *mat.Dense) []float64  { return m.RawMatrix().Data }
func rawVec(v *mat.VecDense) []float64 { return v.RawVector().Data }
