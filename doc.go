/*
go-percept orchestrates several independent perception models (face, body,
hand, object detection and auxiliary face attributes) against a single input
frame and merges their outputs into one structured result.

Pipelines run either sequentially with per stage timing, or concurrently
with independent stages overlapped and joined before aggregation.  Model
sessions are provided by a pluggable backend, an ONNX Runtime backend is
included under backend/ort.

See example code and usage in the example subdirectory.
*/
package percept
