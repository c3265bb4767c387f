package dataset_test

import (
	"math/rand/v2"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/sw965/progsynth/dataset"
	"github.com/sw965/progsynth/game/sequential"
	"github.com/sw965/progsynth/game/sequential/tictactoe"
)

func TestRecorder(t *testing.T) {
	recorder := dataset.Recorder[tictactoe.State, tictactoe.Move, tictactoe.Mark]{
		Engine:    tictactoe.NewEngine(),
		Reference: sequential.NewRandomActor[tictactoe.State, tictactoe.Move, tictactoe.Mark](),
		Category: func(_ tictactoe.State, m tictactoe.Move) string {
			if m.Row == 1 && m.Col == 1 {
				return "center"
			}
			return "other"
		},
	}

	inits := make([]tictactoe.State, 8)
	for i := range inits {
		inits[i] = tictactoe.NewInitState()
	}
	rngs := []*rand.Rand{rand.New(rand.NewPCG(1, 2)), rand.New(rand.NewPCG(3, 4))}

	d, err := recorder.Record(inits, rngs)
	if err != nil {
		t.Fatalf("予期せぬエラーが発生した: %v", err)
	}
	// 一局は5手以上9手以下
	if len(d) < 8*5 || len(d) > 8*9 {
		t.Fatalf("len = %d", len(d))
	}

	for i, s := range d {
		want := 1.0 / float64(len(s.Moves))
		if diff := s.Weight - want; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("sample %d: Weight = %v, want %v", i, s.Weight, want)
		}
		if s.Category == "" {
			t.Errorf("sample %d: Category is empty", i)
		}
	}

	// 重みが0.5以上になるのは合法手が2つ以下の局面だけ
	first := d.Filter(0.5)
	for _, s := range first {
		if len(s.Moves) > 2 {
			t.Errorf("Filter kept a sample with %d moves", len(s.Moves))
		}
	}
	if got := len(d.Filter(0)); got != len(d) {
		t.Errorf("Filter(0) = %d, want %d", got, len(d))
	}

	counts := d.CountByCategory()
	if counts["center"]+counts["other"] != len(d) {
		t.Errorf("CountByCategory = %v", counts)
	}
}

func TestSplitAndPersistence(t *testing.T) {
	d := dataset.Dataset[tictactoe.State, tictactoe.Move]{}
	for i := range 10 {
		state := tictactoe.NewInitState()
		d = append(d, dataset.Sample[tictactoe.State, tictactoe.Move]{
			State:  state,
			Moves:  tictactoe.LegalMoves(state),
			Move:   tictactoe.Move{Mark: tictactoe.Nought, Row: i % 3, Col: i / 3 % 3},
			Weight: float64(i) / 10,
		})
	}

	train, test, err := d.Split(0.7, rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		t.Fatalf("予期せぬエラーが発生した: %v", err)
	}
	if len(train) != 7 || len(test) != 3 {
		t.Errorf("len(train) = %d, len(test) = %d", len(train), len(test))
	}

	if _, _, err := d.Split(1.5, rand.New(rand.NewPCG(1, 2))); err == nil {
		t.Errorf("異常_比率が範囲外でもエラーが発生しなかった")
	}

	path := filepath.Join(t.TempDir(), "dataset.gob")
	if err := dataset.Save(d, path); err != nil {
		t.Fatalf("予期せぬエラーが発生した: %v", err)
	}
	loaded, err := dataset.Load[tictactoe.State, tictactoe.Move](path)
	if err != nil {
		t.Fatalf("予期せぬエラーが発生した: %v", err)
	}
	if !reflect.DeepEqual(d, loaded) {
		t.Errorf("loaded dataset differs from the saved one")
	}
}
