package features

import (
	"github.com/pkg/errors"

	"github.com/menta2k/srgan-data/pkg/tensor"
)

// FeatureScale divides the preprocessed input so the VGG feature maps stay in
// the magnitude range the losses were tuned for.
const FeatureScale = 12.75

// CaffeMeanBGR is the per-channel ImageNet mean subtracted in "caffe" mode, in BGR order.
var CaffeMeanBGR = [3]float64{103.939, 116.779, 123.68}

// Preprocess takes an RGB batch (B, H, W, 3) in [0,1] and returns the
// extractor input: scaled to [0,255], reordered to BGR, mean-centred per
// channel and divided by FeatureScale.
func Preprocess(batch tensor.Tensor) (tensor.Tensor, error) {
	if batch.Rank() == 0 || batch.Shape[batch.Rank()-1] != 3 {
		return tensor.Tensor{}, errors.Errorf("extractor input must have 3 channels last, got shape %v", batch.Shape)
	}
	out := tensor.New(batch.Shape...)
	for i := 0; i+2 < len(batch.Data); i += 3 {
		r, g, b := batch.Data[i]*255, batch.Data[i+1]*255, batch.Data[i+2]*255
		out.Data[i+0] = (b - CaffeMeanBGR[0]) / FeatureScale
		out.Data[i+1] = (g - CaffeMeanBGR[1]) / FeatureScale
		out.Data[i+2] = (r - CaffeMeanBGR[2]) / FeatureScale
	}
	return out, nil
}
