package network

import (
	"encoding/gob"
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// encodeWeights encodes every learnable tensor of a graphNet in
// Learnables order.
func encodeWeights(enc *gob.Encoder, n *graphNet) error {
	for _, learnable := range n.Learnables() {
		data := learnable.Value().Data().([]float64)
		if err := enc.Encode(data); err != nil {
			return fmt.Errorf("encodeweights: could not encode %v: %v",
				learnable.Name(), err)
		}
	}
	return nil
}

// decodeWeights decodes tensors written by encodeWeights into the
// learnables of n, which must have the same architecture.
func decodeWeights(dec *gob.Decoder, n *graphNet) error {
	for _, learnable := range n.Learnables() {
		var data []float64
		if err := dec.Decode(&data); err != nil {
			return fmt.Errorf("decodeweights: could not decode %v: %v",
				learnable.Name(), err)
		}
		shape := learnable.Shape()
		if len(data) != shape.TotalSize() {
			return fmt.Errorf("decodeweights: %v has %v weights "+
				"\n\twant(%v)", learnable.Name(), len(data),
				shape.TotalSize())
		}
		t := tensor.New(tensor.WithShape(shape...),
			tensor.WithBacking(data))
		if err := G.Let(learnable, t); err != nil {
			return fmt.Errorf("decodeweights: could not set %v: %v",
				learnable.Name(), err)
		}
	}
	return nil
}
